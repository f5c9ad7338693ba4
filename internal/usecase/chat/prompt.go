package chat

import (
	"fmt"

	"qissati/internal/domain"
)

const (
	// EmptyReplyText replaces a reply with no text.
	EmptyReplyText = "عذراً، لم أتمكن من الرد. حاول مرة أخرى."
	// ConnectionErrorText is shown when the backend call fails.
	ConnectionErrorText = "حدث خطأ في الاتصال، يرجى المحاولة لاحقاً."
)

// BuildInstruction renders the system instruction for a session about story.
func BuildInstruction(story domain.Story) string {
	kind := "نص"
	if story.IsVideo() {
		kind = "فيديو"
	}
	return fmt.Sprintf(`أنت مساعد ذكي ودود للأطفال في تطبيق تعليمي "قصتي اليوم".
مهمتك هي مساعدة الطلاب على فهم القصة التالية والإجابة على أسئلتهم حولها بأسلوب مشجع ومبسط ومرح.

معلومات القصة الحالية:
العنوان: %s
النوع: %s
المحتوى: %s
سؤال اليوم: %s

تعليمات:
1. أجب دائمًا باللغة العربية.
2. استخدم الإيموجي المناسب لتكون ودوداً.
3. إذا سأل الطالب عن إجابة سؤال اليوم، لا تعطه الإجابة مباشرة، بل وجهه للتفكير بطريقة سقراطية.
4. شجع الطالب دائماً بعبارات مثل "أحسنت يا بطل"، "سؤال رائع".
`, story.Title, kind, story.Content, story.Question)
}
