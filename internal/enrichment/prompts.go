package enrichment

import (
	"fmt"

	"legaldoc-backend/internal/documents"
)

type stagePrompt struct {
	system string
	task   string
}

var stagePrompts = map[documents.Kind]stagePrompt{
	documents.KindSummary: {
		system: "You are a helpful assistant that summarizes legal documents clearly and accurately for readers who are not lawyers.",
		task:   "Summarize the following legal document in plain English. Remove legal jargon but keep the meaning accurate.",
	},
	documents.KindRisks: {
		system: "You analyze legal text to identify potential risks and red flags.",
		task:   "Highlight any potential risks, red flags, or terms that could put the signing party at a disadvantage.",
	},
	documents.KindClauses: {
		system: "You extract key clauses and terms from legal documents.",
		task:   "From the following legal text, extract and list the important clauses, obligations, penalties, auto-renewal terms and unusual clauses.",
	},
}

const qaSystemPrompt = "Answer only using the provided document. If you are not sure, say that you recommend consulting a lawyer."

const consultLawyer = "I recommend consulting a lawyer for this matter."

func stageRequestText(task, text string) string {
	return fmt.Sprintf("%s\nDocument:\n%s", task, text)
}

func qaRequestText(text, question string) string {
	return fmt.Sprintf(`Answer the user's question based only on the provided legal document.
Document:
%s

Question: %s
If unsure, respond: '%s'

Respond in strict JSON with keys: answer (string) and confidence (number between 0 and 1).`, text, question, consultLawyer)
}
