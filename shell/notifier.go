package shell

import (
	"fmt"
	"io"
)

type ConsoleNotifier struct {
	writer io.Writer
}

func NewConsoleNotifier(writer io.Writer) *ConsoleNotifier {
	return &ConsoleNotifier{writer: writer}
}

func (this *ConsoleNotifier) Notify(message string) {
	_, _ = fmt.Fprintln(this.writer, message)
}
