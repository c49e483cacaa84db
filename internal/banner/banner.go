package banner

import (
	"fmt"
	"io"
	"strings"
)

const logo = `
==============================================================
 ____  _             ____       _     _
|  _ \(_)_ __   __ _| __ ) _ __(_) __| | __ _  ___
| |_) | | '_ \ / _` + "`" + ` |  _ \| '__| |/ _` + "`" + ` |/ _` + "`" + ` |/ _ \
|  _ <| | | | | (_| | |_) | |  | | (_| | (_| |  __/
|_| \_\_|_| |_|\__, |____/|_|  |_|\__,_|\__, |\___|
               |___/                    |___/
--------------------------------------------------------------`

const footer = `==============================================================`

// ConfigLine is one "label : value" row of the banner.
type ConfigLine struct {
	Label string
	Value string
}

// Fprint writes the startup banner to w. Rows with an empty value are
// shown as "disabled".
func Fprint(w io.Writer, title string, config []ConfigLine) {
	fmt.Fprintln(w, logo)
	fmt.Fprintln(w, title)

	width := 0
	for _, c := range config {
		width = max(width, len(c.Label))
	}
	for _, c := range config {
		value := c.Value
		if value == "" {
			value = "disabled"
		}
		fmt.Fprintf(w, "  %s%s : %s\n", c.Label, strings.Repeat(" ", width-len(c.Label)), value)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, footer)
	fmt.Fprintln(w)
}
