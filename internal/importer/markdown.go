package importer

import (
	"bufio"
	"io"
	"os"
	"strings"
)

const (
	questionPrefix = "Q:"
	answerPrefix   = "A:"
	blockSeparator = "---"
)

type parseState int

const (
	seeking parseState = iota
	readingQuestion
	readingAnswer
)

// Entry is one front/back pair read from an import source. Line is the
// 1-based line or row it started on.
type Entry struct {
	Front string
	Back  string
	Line  int
}

// ParseMarkdownFile reads Q:/A: blocks from the file at path.
func ParseMarkdownFile(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ParseMarkdown(file)
}

// ParseMarkdown extracts Q:/A: blocks. A block continues over following lines
// until the next prefix, a "---" separator or the end of input; a new Q: always
// starts a new entry. Entries without an answer are kept with an empty Back.
func ParseMarkdown(r io.Reader) ([]Entry, error) {
	scanner := bufio.NewScanner(r)
	var entries []Entry
	var current Entry
	var block []string
	state := seeking
	lineNumber := 0

	flushBlock := func() {
		if len(block) == 0 {
			return
		}
		content := strings.TrimSpace(strings.Join(block, "\n"))
		switch state {
		case readingQuestion:
			current.Front = content
		case readingAnswer:
			current.Back = content
		}
		block = nil
	}
	finishEntry := func() {
		flushBlock()
		if current.Front != "" {
			entries = append(entries, current)
		}
		current = Entry{}
		state = seeking
	}

	for scanner.Scan() {
		lineNumber++
		line := scanner.Text()

		switch {
		case strings.TrimSpace(line) == blockSeparator:
			finishEntry()
		case strings.HasPrefix(line, questionPrefix):
			if state != seeking {
				finishEntry()
			}
			state = readingQuestion
			current.Line = lineNumber
			block = append(block, stripPrefix(line, questionPrefix))
		case strings.HasPrefix(line, answerPrefix) && state != seeking:
			flushBlock()
			state = readingAnswer
			block = append(block, stripPrefix(line, answerPrefix))
		case state != seeking:
			block = append(block, line)
		}
	}
	finishEntry()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func stripPrefix(line, prefix string) string {
	content := line[len(prefix):]
	return strings.TrimPrefix(content, " ")
}
