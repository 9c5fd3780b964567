package generation

import (
	"fmt"
	"regexp"
	"strings"

	"compligen-api/internal/domain/entity"
)

// SourceNoticeHeading 互联网兜底披露段标题
const SourceNoticeHeading = "Content Source Notice"

// 模型自带的 Sources 段标题匹配（任意级别的 Markdown 标题）
var sourcesHeadingRe = regexp.MustCompile(`(?mi)^#{1,6}\s*(sources|references)\s*:?\s*$`)

// stripModelSources 剥离模型自行输出的 Sources/References 段。
// 模型生成的引用文本不可信，由本地渲染的规范列表替代。
func stripModelSources(body string) string {
	loc := sourcesHeadingRe.FindStringIndex(body)
	if loc == nil {
		return strings.TrimSpace(body)
	}

	head := body[:loc[0]]
	tail := body[loc[1]:]

	// Sources 段到下一个标题为止；之后的内容（如披露段）保留
	if next := regexp.MustCompile(`(?m)^#{1,6}\s`).FindStringIndex(tail); next != nil {
		return strings.TrimSpace(head + tail[next[0]:])
	}
	return strings.TrimSpace(head)
}

// renderSources 用验证后的引用列表渲染规范 Sources 段，1 起始编号
func renderSources(citations []entity.Citation) string {
	if len(citations) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("## Sources\n")
	for i, citation := range citations {
		title := strings.TrimSpace(citation.Title)
		if title == "" {
			title = citation.URL
		}
		if citation.URL != "" {
			fmt.Fprintf(&sb, "%d. [%s](%s)", i+1, title, citation.URL)
		} else {
			fmt.Fprintf(&sb, "%d. %s", i+1, title)
		}
		if citation.Source != "" {
			fmt.Fprintf(&sb, " — %s", citation.Source)
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// hasSourceNotice 正文是否已包含披露段
func hasSourceNotice(body string) bool {
	return regexp.MustCompile(`(?mi)^#{1,6}\s*` + regexp.QuoteMeta(SourceNoticeHeading) + `\s*$`).MatchString(body)
}

// renderSourceNotice 本地渲染的披露段（模型遗漏时补齐）
func renderSourceNotice() string {
	return "## " + SourceNoticeHeading + "\n" +
		"The sources for this content were gathered through general web research and fall outside the approved source list. Facts have not been verified against approved domains; treat specifics with appropriate caution."
}

// applyCanonicalSources 整编最终正文：剥离模型 Sources 段、
// 追加本地规范列表，必要时补齐披露段。改写之后也会再次调用，
// 保证规范段不被改写破坏。
func applyCanonicalSources(body string, citations []entity.Citation, internetFallbackUsed bool) string {
	body = stripModelSources(body)

	if internetFallbackUsed && !hasSourceNotice(body) {
		body = body + "\n\n" + renderSourceNotice()
	}

	if sources := renderSources(citations); sources != "" {
		body = body + "\n\n" + sources
	}

	return body
}
