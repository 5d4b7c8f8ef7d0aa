package workflow

import (
	"fmt"
	"strings"
)

// Agent turns a query and its budgeted context into an instruction prompt.
// Agents hold no state and perform no I/O.
type Agent interface {
	Execute(query, context string) string
}

// AgentFunc adapts a plain function to Agent.
type AgentFunc func(query, context string) string

func (f AgentFunc) Execute(query, context string) string { return f(query, context) }

// template builds an agent from a role line and a list of instructions.
func template(role string, steps ...string) Agent {
	return AgentFunc(func(query, context string) string {
		var b strings.Builder
		b.WriteString(role)
		b.WriteString("\n\n")
		if strings.TrimSpace(context) != "" {
			b.WriteString("Context:\n")
			b.WriteString(context)
			b.WriteString("\n\n")
		}
		b.WriteString("Request:\n")
		b.WriteString(query)
		b.WriteString("\n\nInstructions:\n")
		for i, s := range steps {
			fmt.Fprintf(&b, "%d. %s\n", i+1, s)
		}
		return strings.TrimRight(b.String(), "\n")
	})
}

var agents = map[Intent]Agent{
	IntentCodeReview: template(
		"You are a senior engineer performing a code review.",
		"Point out correctness problems first, then readability and maintainability issues.",
		"Reference the file and line for every finding.",
		"Rate each finding as critical, major or minor.",
		"Finish with a short summary of what is good about the code.",
	),
	IntentBugFinder: template(
		"You are a debugging specialist hunting for the root cause of a defect.",
		"Restate the observed failure in one sentence.",
		"List the most likely causes, most probable first.",
		"For the top cause, show the faulty code and a minimal fix.",
		"Describe how to verify the fix.",
	),
	IntentTestGen: template(
		"You are a test engineer writing automated tests.",
		"Identify the units under test and their public behaviour.",
		"Cover the happy path, boundary values and error paths.",
		"Use the project's existing test framework and conventions.",
		"Return complete, runnable test files.",
	),
	IntentRefactor: template(
		"You are refactoring code without changing its behaviour.",
		"Explain the smell you are removing.",
		"Keep public interfaces stable unless the request says otherwise.",
		"Make the smallest set of changes that achieves the goal.",
		"Show the final code for every changed file.",
	),
	IntentDocumentation: template(
		"You are a technical writer documenting code for other developers.",
		"Describe purpose, inputs, outputs and side effects.",
		"Add usage examples where they help.",
		"Match the documentation style already used in the project.",
	),
	IntentOptimization: template(
		"You are a performance engineer.",
		"Identify the hot path and its current complexity.",
		"Propose optimizations ordered by expected impact.",
		"Call out any trade-off in memory, readability or correctness.",
		"Show the optimized code and how to measure the improvement.",
	),
	IntentGeneral: template(
		"You are a helpful coding assistant working inside the user's project.",
		"Answer the request directly and concisely.",
		"Use the context when it is relevant and say when it is not enough.",
		"Show code in fenced blocks with the file path when you change files.",
	),
}

// AgentFor returns the prompt agent for intent, falling back to the general agent.
func AgentFor(intent Intent) Agent {
	if a, ok := agents[intent]; ok {
		return a
	}
	return agents[IntentGeneral]
}
