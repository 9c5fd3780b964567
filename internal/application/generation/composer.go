// Package generation 实现提示词组装、多候选生成、改写与来源整编
package generation

import (
	"fmt"
	"strings"

	"compligen-api/internal/domain/entity"
)

// PromptPair 系统/用户提示词对
type PromptPair struct {
	System string
	User   string
}

// Composer 按 (mode, hasSources, contentType) 决策表组装提示词
type Composer struct{}

// NewComposer 创建提示词组装器
func NewComposer() *Composer {
	return &Composer{}
}

// Compose 组装提示词对。evidence 此后视为只读。
func (c *Composer) Compose(req *entity.GenerationRequest, evidence *entity.EvidenceSet) *PromptPair {
	hasSources := evidence.HasSources()

	var system strings.Builder
	system.WriteString(systemPromptFor(req.Mode, hasSources))

	if block, ok := contentTypeInstructions[req.ContentType]; ok {
		system.WriteString("\n\n")
		system.WriteString(block)
	}

	if evidence.InternetFallbackUsed {
		system.WriteString("\n\n")
		system.WriteString(sourceNoticeInstruction)
	}

	return &PromptPair{
		System: system.String(),
		User:   c.composeUser(req, evidence, hasSources),
	}
}

// composeUser 打包主题、关键词、目标长度、证据上下文与既有正文
func (c *Composer) composeUser(req *entity.GenerationRequest, evidence *entity.EvidenceSet, hasSources bool) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Topic: %s\n", req.Topic)
	if req.PrimaryKeyword != "" {
		fmt.Fprintf(&sb, "Primary keyword: %s\n", req.PrimaryKeyword)
	}
	if req.SecondaryKeyword != "" {
		fmt.Fprintf(&sb, "Secondary keyword: %s\n", req.SecondaryKeyword)
	}
	fmt.Fprintf(&sb, "Content type: %s\n", req.ContentType)
	fmt.Fprintf(&sb, "Target length: about %d words\n", req.TargetWordCount)

	if evidence.Context != "" {
		sb.WriteString("\nEvidence context:\n---\n")
		sb.WriteString(evidence.Context)
		sb.WriteString("\n---\n")
	}

	if hasSources {
		sb.WriteString("\nNumbered sources for citation markers:\n")
		for i, citation := range evidence.Citations {
			title := citation.Title
			if title == "" {
				title = citation.URL
			}
			fmt.Fprintf(&sb, "[%d] %s\n", i+1, title)
		}
	}

	if req.ExistingBody != "" {
		sb.WriteString("\nExisting body to revise:\n---\n")
		sb.WriteString(req.ExistingBody)
		sb.WriteString("\n---\n")
	}

	if hasSources {
		sb.WriteString("\nUse bracketed numeric citation markers matching the numbered sources above.")
	} else {
		sb.WriteString("\nDo not include any bracketed citation markers.")
	}

	return sb.String()
}
