package usecase

// starterSuggestions are offered on an empty chat.
var starterSuggestions = []string{
	"How do I write a Python function to reverse a string?",
	"Can you explain the difference between a list and a tuple in Python?",
	"Show me an example of a REST API using FastAPI.",
	"How do I read a CSV file with pandas?",
	"Write a unit test for a function that adds two numbers.",
	"What is a decorator in Python and how do I use it?",
	"How can I optimize a slow Python loop?",
	"Explain the concept of async/await in Python.",
}

// Suggestions returns a copy of the starter prompts.
func Suggestions() []string {
	out := make([]string, len(starterSuggestions))
	copy(out, starterSuggestions)
	return out
}
