package app

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
)

// listProcedures prints every registered procedure with its argument schema,
// in registration order.
func (a *App) listProcedures() error {
	for def := range a.registry.All() {
		fmt.Fprintf(a.outW, "%s (%s)\n  %s\n", def.Name, def.Version, def.Description)
		for _, arg := range def.Args {
			line := fmt.Sprintf("  --%s <%s>", arg.Name, arg.Type.FriendlyName())
			if arg.Required() {
				line += " (required)"
			} else {
				line += fmt.Sprintf(" (default %s)", formatValue(*arg.Default))
			}
			fmt.Fprintf(a.outW, "%s\n      %s\n", line, arg.Description)
			if arg.Check != nil {
				fmt.Fprintf(a.outW, "      %s\n", arg.Check.Describe())
			}
		}
		fmt.Fprintln(a.outW)
	}
	return nil
}

// formatValue renders a literal argument value for display.
func formatValue(v cty.Value) string {
	switch {
	case v.Type() == cty.String:
		return fmt.Sprintf("%q", v.AsString())
	case v.Type() == cty.Bool:
		return fmt.Sprintf("%t", v.True())
	case v.Type() == cty.Number:
		return v.AsBigFloat().Text('g', -1)
	default:
		return v.GoString()
	}
}
