package entity

// QA is one answered clarification question.
type QA struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}
