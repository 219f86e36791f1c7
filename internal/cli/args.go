package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// toolCallFlags are shared by commands that take a tool call on the
// command line.
type toolCallFlags struct {
	tool     string
	argPairs []string
	argsJSON string
}

// build assembles the argument map. Positional words become "command";
// --args supplies a JSON object; --arg key=value pairs are applied last.
func (f toolCallFlags) build(words []string) (map[string]any, error) {
	args := map[string]any{}
	if strings.TrimSpace(f.argsJSON) != "" {
		dec := json.NewDecoder(bytes.NewReader([]byte(f.argsJSON)))
		dec.UseNumber()
		if err := dec.Decode(&args); err != nil {
			return nil, fmt.Errorf("--args must be a JSON object: %w", err)
		}
		if args == nil {
			args = map[string]any{}
		}
	}
	if len(words) > 0 {
		args["command"] = strings.Join(words, " ")
	}
	for _, pair := range f.argPairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("--arg %q must be key=value", pair)
		}
		args[strings.TrimSpace(key)] = value
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("nothing to evaluate: pass a command or --arg/--args")
	}
	return args, nil
}

func (f *toolCallFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.tool, "tool", "exec", "tool name")
	cmd.Flags().StringArrayVar(&f.argPairs, "arg", nil, "tool argument as key=value (repeatable)")
	cmd.Flags().StringVar(&f.argsJSON, "args", "", "tool arguments as a JSON object")
}
