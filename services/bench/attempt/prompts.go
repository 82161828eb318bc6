// Copyright (C) 2026 SherlockBench Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package attempt

import (
	"fmt"
	"strings"

	"github.com/sherlockbench/sherlockbench-go/services/bench/provider"
)

// Tool names the model interacts with.
const (
	// ToolMysteryFunction probes the hidden function.
	ToolMysteryFunction = "mystery_function"

	// ToolReadyToVerify signals the model has finished investigating.
	ToolReadyToVerify = "ready_to_verify"

	// ToolSubmitPrediction commits a predicted output for the current
	// verification case.
	ToolSubmitPrediction = "submit_prediction"
)

const systemPrompt = `You are an expert investigator playing a deduction game.
You are given tool access to a mystery function. Call it with inputs of your
choosing, study the outputs, and work out what the function does. Once you
are confident, signal that you are ready; you will then be asked to predict
the function's output for specific inputs.`

// investigationTools builds the tool set offered while investigating.
func investigationTools(params []provider.Parameter) []provider.ToolDefinition {
	return []provider.ToolDefinition{
		{
			Name:        ToolMysteryFunction,
			Description: "Call the mystery function with your chosen inputs and see its output.",
			Parameters:  params,
		},
		{
			Name:        ToolReadyToVerify,
			Description: "Declare that you understand the mystery function and are ready to predict its outputs.",
		},
	}
}

// verificationTools builds the tool set offered while verifying.
func verificationTools(outputType string) []provider.ToolDefinition {
	return []provider.ToolDefinition{
		{
			Name:        ToolSubmitPrediction,
			Description: "Submit your predicted output for the given inputs.",
			Parameters:  []provider.Parameter{{Name: "expected_output", Type: outputType}},
		},
	}
}

// initialMessage opens the investigation.
func initialMessage(params []provider.Parameter, testLimit int) provider.Message {
	var types []string
	for _, p := range params {
		types = append(types, fmt.Sprintf("%s (%s)", p.Name, p.Type))
	}

	content := fmt.Sprintf(
		"Investigate the mystery function. It takes %d argument(s): %s.",
		len(params), strings.Join(types, ", "))
	if testLimit > 0 {
		content += fmt.Sprintf(" You may call it at most %d times.", testLimit)
	}
	content += " When you understand what it does, use the ready_to_verify tool."

	return provider.Message{Role: provider.RoleUser, Content: content}
}

// summaryRequest asks the model to condense its findings before the
// transcript is thrown away.
func summaryRequest() provider.Message {
	return provider.Message{
		Role: provider.RoleUser,
		Content: "Summarize everything you have learned about the mystery function. " +
			"State what the function does as precisely as you can, including any " +
			"edge cases you observed. Your summary will be your only notes when " +
			"you are asked to predict its outputs.",
	}
}

// summarySeed wraps the model's summary as the sole context for
// verification after a three-phase reset.
func summarySeed(summary string) provider.Message {
	return provider.Message{
		Role: provider.RoleUser,
		Content: "Here is your summary of the mystery function from your investigation:\n\n" +
			summary +
			"\n\nYou will now be asked to predict the function's output for specific inputs.",
	}
}

// verificationMessage presents one verification case.
func verificationMessage(inputs []any, outputType string) provider.Message {
	var pairs []string
	for i, v := range inputs {
		pairs = append(pairs, fmt.Sprintf("%c = %v", 'a'+i, v))
	}

	content := fmt.Sprintf(
		"Predict the mystery function's output for these inputs: %s. "+
			"The output type is %s. Submit your answer with the submit_prediction tool.",
		strings.Join(pairs, ", "), outputType)

	return provider.Message{Role: provider.RoleUser, Content: content}
}
