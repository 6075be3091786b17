package types

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
)

type PriorityLevel string

const (
	PriorityNone    PriorityLevel = "none"
	PriorityLow     PriorityLevel = "low"
	PriorityMedium  PriorityLevel = "medium"
	PriorityHigh    PriorityLevel = "high"
	PriorityExtreme PriorityLevel = "extreme"
)

type PriorityConfig struct {
	ComputeUnits uint32 // лимит compute units
	PriorityFee  uint64 // цена compute unit в micro-lamports
}

var priorityProfiles = map[PriorityLevel]PriorityConfig{
	PriorityNone:    {},
	PriorityLow:     {ComputeUnits: 200_000, PriorityFee: 1_000},
	PriorityMedium:  {ComputeUnits: 400_000, PriorityFee: 5_000},
	PriorityHigh:    {ComputeUnits: 800_000, PriorityFee: 10_000},
	PriorityExtreme: {ComputeUnits: 1_000_000, PriorityFee: 50_000},
}

// ParsePriorityLevel accepts the configured level name; empty means none.
func ParsePriorityLevel(s string) (PriorityLevel, error) {
	if s == "" {
		return PriorityNone, nil
	}
	level := PriorityLevel(s)
	if _, ok := priorityProfiles[level]; !ok {
		return "", fmt.Errorf("unknown priority level: %s", s)
	}
	return level, nil
}

// PriorityInstructions returns compute budget instructions for the level.
// The assembler places them after the fee transfer.
func PriorityInstructions(level PriorityLevel) ([]solana.Instruction, error) {
	config, ok := priorityProfiles[level]
	if !ok {
		return nil, fmt.Errorf("unknown priority level: %s", level)
	}

	var instructions []solana.Instruction
	if config.ComputeUnits > 0 {
		instructions = append(instructions, computebudget.NewSetComputeUnitLimitInstruction(config.ComputeUnits).Build())
	}
	if config.PriorityFee > 0 {
		instructions = append(instructions, computebudget.NewSetComputeUnitPriceInstruction(config.PriorityFee).Build())
	}
	return instructions, nil
}
