package db

// DocRef addresses one document in the search engine.
type DocRef struct {
	Index string `json:"_index"`
	Type  string `json:"_type"`
	ID    string `json:"_id"`
}

// IndexRequest submits a single document.
type IndexRequest struct {
	DocRef
	Body map[string]any
}

// BulkAction is the action half of a bulk body pair.
type BulkAction struct {
	Index DocRef `json:"index"`
}

// BulkItem reports the outcome of one bulk action.
type BulkItem struct {
	ID    string `json:"_id"`
	Error string `json:"error,omitempty"`
}

// BulkResponse is the engine's answer to a bulk submission.
type BulkResponse struct {
	Items  []BulkItem `json:"items"`
	Errors bool       `json:"errors"`
}

// ValidateRequest asks the engine whether a query string is valid.
type ValidateRequest struct {
	Index string
	Type  string
	Q     string
}

// Validation is the engine's verdict on a query string.
type Validation struct {
	Valid        bool     `json:"valid"`
	Explanations []string `json:"explanations,omitempty"`
}

// SearchRequest runs a query string against (index, type).
type SearchRequest struct {
	Index   string
	Type    string
	Q       string
	From    int
	Size    int
	Explain bool
}

// SearchResult is the output of a search, returned to clients as-is.
type SearchResult struct {
	Total       int    `json:"total"`
	Hits        []Hit  `json:"hits"`
	Explanation string `json:"explanation,omitempty"`
}

// Hit is a single matching document.
type Hit struct {
	ID     string         `json:"_id"`
	Score  float64        `json:"_score"`
	Source map[string]any `json:"_source"`
}

// BulkPairs splits a bulk body into (action, document) pairs. Malformed
// trailing elements are ignored.
func BulkPairs(body []any) []IndexRequest {
	out := make([]IndexRequest, 0, len(body)/2)
	for i := 0; i+1 < len(body); i += 2 {
		action, ok := body[i].(BulkAction)
		if !ok {
			if p, isPtr := body[i].(*BulkAction); isPtr && p != nil {
				action, ok = *p, true
			}
		}
		doc, isMap := body[i+1].(map[string]any)
		if !ok || !isMap {
			continue
		}
		out = append(out, IndexRequest{DocRef: action.Index, Body: doc})
	}
	return out
}
