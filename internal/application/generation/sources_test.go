package generation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"compligen-api/internal/domain/entity"
)

var testCitations = []entity.Citation{
	{Title: "FDA Guidance", URL: "https://fda.gov/guidance", Source: "fda.gov"},
	{Title: "Reuters Report", URL: "https://reuters.com/article", Source: "reuters.com"},
}

func TestStripModelSourcesRemovesTrailingSection(t *testing.T) {
	body := "# Title\n\nSome content with a claim [1].\n\n## Sources\n1. made-up source\n2. another"
	got := stripModelSources(body)
	assert.NotContains(t, got, "made-up source")
	assert.Contains(t, got, "Some content with a claim [1].")
}

func TestStripModelSourcesKeepsFollowingSection(t *testing.T) {
	body := "Content here.\n\n### References:\n1. fabricated\n\n## Content Source Notice\nDisclosure text."
	got := stripModelSources(body)
	assert.NotContains(t, got, "fabricated")
	assert.Contains(t, got, "Content Source Notice")
	assert.Contains(t, got, "Disclosure text.")
}

func TestStripModelSourcesNoSection(t *testing.T) {
	body := "Plain content without any source section."
	assert.Equal(t, body, stripModelSources(body))
}

func TestRenderSourcesNumbering(t *testing.T) {
	got := renderSources(testCitations)
	assert.Contains(t, got, "## Sources")
	assert.Contains(t, got, "1. [FDA Guidance](https://fda.gov/guidance) — fda.gov")
	assert.Contains(t, got, "2. [Reuters Report](https://reuters.com/article) — reuters.com")
}

func TestRenderSourcesURLLessCitation(t *testing.T) {
	got := renderSources([]entity.Citation{
		{Title: "Internal Standard Operating Procedures", Source: "SOP"},
	})
	assert.Contains(t, got, "1. Internal Standard Operating Procedures — SOP")
	assert.NotContains(t, got, "](")
}

func TestRenderSourcesEmpty(t *testing.T) {
	assert.Equal(t, "", renderSources(nil))
}

func TestApplyCanonicalSourcesReplacesModelList(t *testing.T) {
	body := "Draft body [1].\n\n## Sources\n1. http://hallucinated.example"
	got := applyCanonicalSources(body, testCitations, false)

	assert.NotContains(t, got, "hallucinated")
	assert.Contains(t, got, "1. [FDA Guidance](https://fda.gov/guidance)")
	assert.Equal(t, 1, strings.Count(got, "## Sources"))
}

func TestApplyCanonicalSourcesAddsNoticeOnFallback(t *testing.T) {
	got := applyCanonicalSources("Draft body.", testCitations, true)
	assert.Equal(t, 1, strings.Count(got, "## "+SourceNoticeHeading))
	// 披露段在规范列表之前
	assert.Less(t, strings.Index(got, SourceNoticeHeading), strings.Index(got, "## Sources"))
}

func TestApplyCanonicalSourcesKeepsExistingNotice(t *testing.T) {
	body := "Draft body.\n\n## Content Source Notice\nModel-written disclosure."
	got := applyCanonicalSources(body, testCitations, true)
	assert.Equal(t, 1, strings.Count(got, SourceNoticeHeading))
	assert.Contains(t, got, "Model-written disclosure.")
}

func TestApplyCanonicalSourcesIdempotentAfterRewrite(t *testing.T) {
	// 改写后再整编一次，规范段不应重复
	first := applyCanonicalSources("Draft body [1].", testCitations, true)
	second := applyCanonicalSources(first, testCitations, true)
	assert.Equal(t, 1, strings.Count(second, "## Sources"))
	assert.Equal(t, 1, strings.Count(second, SourceNoticeHeading))
}

func TestApplyCanonicalSourcesNoCitations(t *testing.T) {
	got := applyCanonicalSources("Body without sources.", nil, false)
	assert.NotContains(t, got, "## Sources")
}
