package domain

import "encoding/json"

// Action names a write command understood by the sheet endpoint.
type Action string

const (
	ActionSubmitAnswer   Action = "submit_answer"
	ActionAddStory       Action = "add_story"
	ActionEditStory      Action = "edit_story"
	ActionDeleteStory    Action = "delete_story"
	ActionDeleteResponse Action = "delete_response"
)

// Command is the single envelope posted to the endpoint: {action, id, ...fields}.
type Command struct {
	Action Action
	ID     string
	Fields map[string]any
}

// MarshalJSON flattens Fields next to action and id.
func (c Command) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(c.Fields)+2)
	for k, v := range c.Fields {
		out[k] = v
	}
	out["action"] = c.Action
	out["id"] = c.ID
	return json.Marshal(out)
}

// SubmitAnswerCommand builds submit_answer.
func SubmitAnswerCommand(id, storyTitle string, a Answer) Command {
	return Command{Action: ActionSubmitAnswer, ID: id, Fields: map[string]any{
		"name":       a.Name,
		"class":      a.Class,
		"storyTitle": storyTitle,
		"answer":     a.Text,
	}}
}

// AddStoryCommand builds add_story.
func AddStoryCommand(id string, f StoryFields) Command {
	return Command{Action: ActionAddStory, ID: id, Fields: storyFieldMap(f)}
}

// EditStoryCommand builds edit_story.
func EditStoryCommand(id string, f StoryFields) Command {
	return Command{Action: ActionEditStory, ID: id, Fields: storyFieldMap(f)}
}

// DeleteStoryCommand builds delete_story.
func DeleteStoryCommand(id string) Command {
	return Command{Action: ActionDeleteStory, ID: id}
}

// DeleteResponseCommand builds delete_response.
func DeleteResponseCommand(id string) Command {
	return Command{Action: ActionDeleteResponse, ID: id}
}

func storyFieldMap(f StoryFields) map[string]any {
	typ := f.Type
	if typ == "" {
		typ = StoryText
	}
	return map[string]any{
		"title":    f.Title,
		"content":  f.Content,
		"question": f.Question,
		"date":     f.Date,
		"type":     typ,
		"videoUrl": f.VideoURL,
	}
}

// RawRecord is one row as delivered by the sheet, with unknown key casing.
type RawRecord map[string]any

// RawPayload is the decoded GET body. A Has* flag is false when the key was absent.
type RawPayload struct {
	Stories      []RawRecord
	Responses    []RawRecord
	HasStories   bool
	HasResponses bool
}

// Ack is the verbatim decoded body of a command response.
type Ack json.RawMessage
