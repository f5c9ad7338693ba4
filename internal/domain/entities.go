package domain

// StoryType describes how the story body is presented.
type StoryType string

const (
	StoryText  StoryType = "text"
	StoryVideo StoryType = "video"
)

// StoryStatus is derived locally from the date order and never sent to the sheet.
type StoryStatus string

const (
	StatusToday   StoryStatus = "Today"
	StatusArchive StoryStatus = "Archive"
)

// Story is the canonical form of a story row.
type Story struct {
	ID       string      `json:"id"`
	Date     string      `json:"date"`
	Title    string      `json:"title"`
	Type     StoryType   `json:"type"`
	Content  string      `json:"content"`
	VideoURL string      `json:"videoUrl,omitempty"`
	Question string      `json:"question"`
	Status   StoryStatus `json:"status"`
}

// IsVideo reports whether the story body is a video summary.
func (s Story) IsVideo() bool { return s.Type == StoryVideo }

// StoryFields carries the editable part of a story for add/edit commands.
type StoryFields struct {
	Title    string    `json:"title"`
	Content  string    `json:"content"`
	Question string    `json:"question"`
	Date     string    `json:"date"`
	Type     StoryType `json:"type"`
	VideoURL string    `json:"videoUrl"`
}

// StudentResponse is one submitted answer. Responses are linked to stories by title.
type StudentResponse struct {
	ID          string `json:"id"`
	Timestamp   string `json:"timestamp"`
	StoryID     string `json:"storyId"`
	StoryTitle  string `json:"storyTitle"`
	StudentName string `json:"studentName"`
	ClassName   string `json:"className"`
	Answer      string `json:"answer"`
}

// Answer is the student form input.
type Answer struct {
	Name  string `json:"name"`
	Class string `json:"class"`
	Text  string `json:"answer"`
}

// ChatRole identifies the author of a chat message.
type ChatRole string

const (
	RoleUser  ChatRole = "user"
	RoleModel ChatRole = "model"
)

// ChatMessage is one transcript entry.
type ChatMessage struct {
	Role ChatRole `json:"role"`
	Text string   `json:"text"`
}

// ConnectionStatus reflects the outcome of the last refresh.
type ConnectionStatus string

const (
	ConnIdle      ConnectionStatus = "idle"
	ConnConnected ConnectionStatus = "connected"
	ConnError     ConnectionStatus = "error"
)

// Settings are the locally persisted client settings.
type Settings struct {
	EndpointURL   string
	AdminPassword string
}
