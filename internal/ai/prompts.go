package ai

import (
	"fmt"
	"strings"
)

const chatPromptTemplate = `You are a personal finance assistant. You help the user understand their
finances, plan for retirement and reach their goals.

Ground every answer in the user's financial context below. Amounts are in
dollars and rounded to whole numbers; percentages are whole percents.
When the context lacks the data needed to answer, say so and suggest what
the user could add. Do not give tax or legal advice; recommend a
professional for those. Keep answers short and use bullet points for lists.

Financial context (JSON):
%s`

// ChatSystemPrompt embeds the serialized financial context into the system
// prompt sent with every chat turn.
func ChatSystemPrompt(contextJSON string) string {
	contextJSON = strings.TrimSpace(contextJSON)
	if contextJSON == "" {
		contextJSON = "{}"
	}
	return fmt.Sprintf(chatPromptTemplate, contextJSON)
}

const extractionPrompt = `You extract holdings from bank and brokerage statements.

Reply with JSON only, no prose and no code fences, in this shape:
{"holdings":[{"name":"...","type":"...","assetClass":"...","balance":0}]}

Rules:
- "type" is one of Investment, Cash, Retirement, Real Estate, Other.
- "assetClass" is one of Stocks, Bonds, ETFs, Cash, Crypto, Other.
- "balance" is the current market value as a plain number.
- One entry per account or position; skip totals and subtotals.
- If the statement has no holdings reply {"holdings":[]}.`
