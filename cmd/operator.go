package cmd

import (
	"bufio"
	"fmt"
	"os"
)

// consoleOperator satisfies protocol.Operator over stdin/stdout: Pause
// prints the message and blocks until the operator presses Enter. Time spent
// paused invalidates nothing.
type consoleOperator struct{}

func (consoleOperator) Pause(msg string) error {
	fmt.Println(msg)
	fmt.Print("Press Enter to resume: ")
	reader := bufio.NewReader(os.Stdin)
	if _, err := reader.ReadString('\n'); err != nil {
		return fmt.Errorf("waiting for operator acknowledgment: %w", err)
	}
	return nil
}
