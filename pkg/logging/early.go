package logging

import (
	"fmt"
	"io"
	"os"
)

// EarlyOutput receives messages written before a zap logger exists.
var EarlyOutput io.Writer = os.Stderr

// Early reports a startup failure that happened before logging was
// configured, e.g. an unreadable config file.
func Early(format string, args ...interface{}) {
	fmt.Fprintf(EarlyOutput, "raffle: "+format+"\n", args...)
}
