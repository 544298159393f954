package ui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/AlecAivazis/survey/v2"
)

const (
	answerYes = "yes"
	answerNo  = "no"

	decisionPrompt = "Proceed with installation? Type yes or no only:"
	retryPrompt    = "Type yes or no only:"
)

// Asker reads one free-form answer from the operator.
type Asker interface {
	Ask(message string) (string, error)
}

// SurveyAsker asks on the controlling terminal.
type SurveyAsker struct{}

func (a *SurveyAsker) Ask(message string) (string, error) {
	var answer string
	if err := survey.AskOne(&survey.Input{Message: message}, &answer); err != nil {
		return "", err
	}
	return answer, nil
}

// LineAsker reads answers line by line, for input that is not a terminal.
type LineAsker struct {
	reader *bufio.Reader
	out    io.Writer
}

func NewLineAsker(in io.Reader, out io.Writer) *LineAsker {
	return &LineAsker{reader: bufio.NewReader(in), out: out}
}

func (a *LineAsker) Ask(message string) (string, error) {
	fmt.Fprintf(a.out, "%s ", message)
	line, err := a.reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// NewStdinAsker picks a terminal prompt when stdin is interactive and a
// plain line reader otherwise.
func NewStdinAsker() Asker {
	if isTerminal(os.Stdin) {
		return &SurveyAsker{}
	}
	return NewLineAsker(os.Stdin, os.Stdout)
}

// Prompter runs the yes/no confirmation loop.
type Prompter struct {
	asker Asker
	out   io.Writer
}

func NewPrompter(asker Asker, out io.Writer) *Prompter {
	return &Prompter{asker: asker, out: out}
}

// Decide keeps asking until the answer is exactly "yes" or "no".
func (p *Prompter) Decide() (bool, error) {
	answer, err := p.asker.Ask(decisionPrompt)
	for err == nil && answer != answerYes && answer != answerNo {
		answer, err = p.asker.Ask(retryPrompt)
	}
	if err != nil {
		return false, fmt.Errorf("failed to read answer: %w", err)
	}
	fmt.Fprintln(p.out)
	return answer == answerYes, nil
}
