package cmd

import (
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
)

// bondTypes are the sheets of the issuer's workbook.
var bondTypes = predict.Set{"ROR", "DOS", "TOS", "COI", "EDO", "ROS", "ROD", "OTS"}

// Completion returns the shell completion of the tsy command.
func Completion() *complete.Command {
	return &complete.Command{
		Flags: map[string]complete.Predictor{
			"config": predict.Files("*.yaml"),
			"plain":  predict.Nothing,
		},
		Sub: map[string]*complete.Command{
			"sync":  {},
			"watch": {Flags: map[string]complete.Predictor{"tick": predict.Something}},
			"hold":  {Flags: map[string]complete.Predictor{"a": predict.Something}},
			"schedule": {Flags: map[string]complete.Predictor{
				"mode":  predict.Set{"daily", "event"},
				"today": predict.Something,
			}},
			"series":   {Args: bondTypes},
			"help":     {},
			"commands": {},
			"flags":    {},
		},
	}
}
