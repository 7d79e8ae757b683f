package documents

import "time"

// AIResponse mirrors AIFields with explicit nulls for missing values.
type AIResponse struct {
	Summary *string `json:"summary"`
	Risks   *string `json:"risks"`
	Clauses *string `json:"clauses"`
}

// UploadResponse is returned by POST /documents.
type UploadResponse struct {
	ID               string     `json:"id"`
	OriginalFileName string     `json:"originalFileName"`
	CreatedAt        time.Time  `json:"createdAt"`
	AI               AIResponse `json:"ai"`
	Message          string     `json:"message"`
}

// ListItemResponse is one row of GET /documents.
type ListItemResponse struct {
	ID               string    `json:"id"`
	OriginalFileName string    `json:"originalFileName"`
	CreatedAt        time.Time `json:"createdAt"`
	HasSummary       bool      `json:"hasSummary"`
	HasRisks         bool      `json:"hasRisks"`
}

// QAResponse is one entry of a document's QA history.
type QAResponse struct {
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	Confidence *float64  `json:"confidence"`
	CreatedAt  time.Time `json:"createdAt"`
}

// DetailResponse is returned by GET /documents/:id. It never carries the raw bytes.
type DetailResponse struct {
	ID               string       `json:"id"`
	OriginalFileName string       `json:"originalFileName"`
	ContentType      string       `json:"contentType"`
	Size             int64        `json:"size"`
	CreatedAt        time.Time    `json:"createdAt"`
	Text             string       `json:"text"`
	AI               AIResponse   `json:"ai"`
	QA               []QAResponse `json:"qa"`
}

func toAIResponse(ai AIFields) AIResponse {
	return AIResponse{Summary: ai.Summary, Risks: ai.Risks, Clauses: ai.Clauses}
}

func toUploadResponse(doc Document) UploadResponse {
	return UploadResponse{
		ID:               doc.ID,
		OriginalFileName: doc.OriginalFileName,
		CreatedAt:        doc.CreatedAt,
		AI:               toAIResponse(doc.AI),
		Message:          "Document uploaded successfully. AI processing in background.",
	}
}

func toListResponse(items []ListItem) []ListItemResponse {
	out := make([]ListItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, ListItemResponse{
			ID:               item.ID,
			OriginalFileName: item.OriginalFileName,
			CreatedAt:        item.CreatedAt,
			HasSummary:       item.HasSummary,
			HasRisks:         item.HasRisks,
		})
	}
	return out
}

func toDetailResponse(doc Document) DetailResponse {
	qa := make([]QAResponse, 0, len(doc.QA))
	for _, entry := range doc.QA {
		qa = append(qa, QAResponse{
			Question:   entry.Question,
			Answer:     entry.Answer,
			Confidence: entry.Confidence,
			CreatedAt:  entry.CreatedAt,
		})
	}
	return DetailResponse{
		ID:               doc.ID,
		OriginalFileName: doc.OriginalFileName,
		ContentType:      doc.ContentType,
		Size:             doc.SizeBytes,
		CreatedAt:        doc.CreatedAt,
		Text:             doc.Text,
		AI:               toAIResponse(doc.AI),
		QA:               qa,
	}
}
