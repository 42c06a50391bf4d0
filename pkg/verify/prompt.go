package verify

import "fmt"

// JudgePrompt is the instruction sent with a screenshot to judge providers.
func JudgePrompt(instruction, expected string) string {
	return fmt.Sprintf(`You are a UI testing assistant. Analyze the provided screenshot and determine if the expected outcome is satisfied.

## Task Instruction
%s

## Expected Outcome
%s

## Your Task
1. Carefully examine the screenshot
2. Determine if the expected outcome is visible/satisfied
3. Provide your assessment

Respond in JSON format:
{
  "passed": true/false,
  "reasoning": "Brief explanation of what you observed",
  "confidence": 0.0-1.0,
  "details": "Any additional observations"
}`, instruction, expected)
}

// agentGoal is the task handed to agentic providers.
func agentGoal(instruction, expected string) string {
	return fmt.Sprintf(`Task: Verify the following condition is met.

Instruction: %s

Expected outcome: %s

Examine the screen and determine if the expected outcome is satisfied.
If it is satisfied, perform the action: finished()
If it is not satisfied, perform the action: call_user() and describe what you see instead.`, instruction, expected)
}

// cliGoal is the one-line goal passed to the agent-tars command.
func cliGoal(instruction, expected string) string {
	return fmt.Sprintf("Verify: %s. Expected: %s. If the condition is met, report success.", instruction, expected)
}
