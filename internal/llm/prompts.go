package llm

import "fmt"

const systemPrompt = `You are an AI assistant that analyzes customer reviews and ratings.

Your task is to generate a JSON response with exactly three fields:
1. user_ai_response: A helpful, empathetic response to the customer (2-3 sentences)
2. admin_summary: A brief summary for admin dashboard (1-2 sentences)
3. recommended_actions: A list of 1-3 concrete action items for the business

You must respond with ONLY valid JSON in this exact format:
{
  "user_ai_response": "string",
  "admin_summary": "string",
  "recommended_actions": ["action1", "action2"]
}

Do not include any text before or after the JSON object.`

// SystemPrompt returns the fixed instruction describing the reply contract.
func SystemPrompt() string { return systemPrompt }

// UserPrompt embeds one submission verbatim.
func UserPrompt(rating int, review string) string {
	return fmt.Sprintf("Rating: %d/5\nReview: %s\n\nGenerate a response following the specified JSON format.", rating, review)
}
