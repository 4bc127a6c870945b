package core

// ExecutionState is the debugger's operational mode.
type ExecutionState string

const (
	// StateIdle: no run in progress, waiting for an agent.
	StateIdle ExecutionState = "idle"
	// StateContinue: breakpoints are released immediately without halting.
	StateContinue ExecutionState = "continue"
	// StateStep: the next breakpoint halts the agent.
	StateStep ExecutionState = "step"
	// StateHalted: the agent is blocked at the pending breakpoint.
	StateHalted ExecutionState = "halted"
)

// AgentState is the human-readable activity label shown by the UI.
type AgentState string

const (
	AgentRunning       AgentState = "Agent running..."
	AgentLLMThinking   AgentState = "LLM thinking..."
	AgentToolExecuting AgentState = "Tool executing..."
	AgentHalted        AgentState = "Halted at breakpoint..."
	AgentHalting       AgentState = "Halting at breakpoint..."
	AgentFinished      AgentState = "Agent finished..."
)
