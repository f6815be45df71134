package utils

// Label 是推荐链路中的可解释标记：记录一个候选经过了哪些阶段、被谁打了什么标。
// Value 与 Source 的语义由写入方自定义（例如 recall_source=emb / ranker=gbdt）。
type Label struct {
	Value  string `json:"value"`
	Source string `json:"source"` // recall / rank / rerank / filter ...
}

// MergeLabel 合并同名 Label，默认策略是保留历史、可追踪：
// - Value 以 '|' 累积
// - Source 以 ',' 累积
func MergeLabel(existing Label, incoming Label) Label {
	if existing.Value == "" {
		return incoming
	}
	if incoming.Value == "" {
		return existing
	}

	merged := existing
	merged.Value = existing.Value + "|" + incoming.Value
	switch {
	case existing.Source == "":
		merged.Source = incoming.Source
	case incoming.Source == "":
		merged.Source = existing.Source
	default:
		merged.Source = existing.Source + "," + incoming.Source
	}
	return merged
}
