package entity

// Citation 来源引用
type Citation struct {
	Title  string `json:"title"`
	URL    string `json:"url"`
	Source string `json:"source"`
}

// EvidenceChunk 检索到的证据块
type EvidenceChunk struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// EvidenceSet 检索解析后的证据集合。
// 传入 Prompt 组装后视为只读。
type EvidenceSet struct {
	Context              string          `json:"context"`
	Citations            []Citation      `json:"citations"`
	RAGChunks            []EvidenceChunk `json:"rag_chunks"`
	InternetFallbackUsed bool            `json:"internet_fallback_used"`
	Warnings             []string        `json:"warnings"`
}

// HasSources 是否存在可引用来源
func (e *EvidenceSet) HasSources() bool {
	return e != nil && len(e.Citations) > 0
}
