package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compligen-api/internal/domain/entity"
)

func newEvidence(citations []entity.Citation, fallback bool) *entity.EvidenceSet {
	return &entity.EvidenceSet{
		Context:              "Evidence excerpt about the topic.",
		Citations:            citations,
		InternetFallbackUsed: fallback,
	}
}

func TestComposeNewsWithSourcesRequiresMarkers(t *testing.T) {
	req := &entity.GenerationRequest{
		Topic:           "New FDA labeling rule",
		Mode:            entity.ModeNews,
		ContentType:     entity.ContentTypeArticleLong,
		TargetWordCount: 800,
	}
	pair := NewComposer().Compose(req, newEvidence(testCitations, false))

	assert.Contains(t, pair.System, "inline numbered citation marker")
	assert.Contains(t, pair.System, `"TL;DR"`)
	assert.Contains(t, pair.System, "long-form article")
	assert.NotContains(t, pair.System, sourceNoticeInstruction)

	assert.Contains(t, pair.User, "Topic: New FDA labeling rule")
	assert.Contains(t, pair.User, "about 800 words")
	assert.Contains(t, pair.User, "[1] FDA Guidance")
	assert.Contains(t, pair.User, "[2] Reuters Report")
}

func TestComposeNewsWithoutSourcesForbidsMarkers(t *testing.T) {
	req := &entity.GenerationRequest{
		Topic:       "Industry outlook",
		Mode:        entity.ModeNews,
		ContentType: entity.ContentTypeArticleShort,
	}
	pair := NewComposer().Compose(req, newEvidence(nil, false))

	assert.Contains(t, pair.System, "Do NOT include any citation markers")
	assert.NotContains(t, pair.User, "Numbered sources")
}

func TestComposePrivateModeSOPConstraints(t *testing.T) {
	req := &entity.GenerationRequest{
		Topic:       "Incident escalation procedure",
		Mode:        entity.ModePrivate,
		ContentType: entity.ContentTypeWebpageSummary,
	}
	pair := NewComposer().Compose(req, newEvidence([]entity.Citation{
		{Title: "Internal Standard Operating Procedures", Source: "SOP"},
	}, false))

	assert.Contains(t, pair.System, "exactly 40 words")
	assert.Contains(t, pair.System, "Procedure Summary")
	assert.Contains(t, pair.System, "Markdown table")
}

func TestComposeUnknownModeFallsBackToGeneral(t *testing.T) {
	req := &entity.GenerationRequest{
		Topic:       "Anything",
		Mode:        entity.ModePrivate, // private 无 hasSources=false 表项
		ContentType: entity.ContentTypeArticleShort,
	}
	pair := NewComposer().Compose(req, newEvidence(nil, false))
	require.NotEmpty(t, pair.System)
	assert.Contains(t, pair.System, `"Overview"`)
}

func TestComposeInternetFallbackAddsNoticeInstruction(t *testing.T) {
	req := &entity.GenerationRequest{
		Topic:       "Breaking development",
		Mode:        entity.ModeNews,
		ContentType: entity.ContentTypeArticleShort,
	}
	pair := NewComposer().Compose(req, newEvidence(testCitations, true))
	assert.Contains(t, pair.System, SourceNoticeHeading)
}

func TestComposeMetaTagsInstruction(t *testing.T) {
	req := &entity.GenerationRequest{
		Topic:       "Product landing page",
		Mode:        entity.ModeGeneral,
		ContentType: entity.ContentTypeMetaTags,
	}
	pair := NewComposer().Compose(req, newEvidence(testCitations, false))
	assert.Contains(t, pair.System, "at most 60 characters")
	assert.Contains(t, pair.System, "at most 155 characters")
}

func TestComposeExistingBodyIncluded(t *testing.T) {
	req := &entity.GenerationRequest{
		Topic:        "Service page refresh",
		Mode:         entity.ModeGeneral,
		ContentType:  entity.ContentTypeWebpageRevision,
		ExistingBody: "Old page copy to be reworked.",
	}
	pair := NewComposer().Compose(req, newEvidence(testCitations, false))
	assert.Contains(t, pair.User, "Existing body to revise")
	assert.Contains(t, pair.User, "Old page copy to be reworked.")
}
