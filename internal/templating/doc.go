// Package templating implements the default text templating used while
// resolving tocs: {{ var }} substitutions, {% if %} conditional blocks and
// the boolean expressions that drive both blocks and item "when" conditions.
package templating
