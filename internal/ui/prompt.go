package ui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// MaxPasswordLength is the longest WPA passphrase.
const MaxPasswordLength = 63

var promptStyle = lipgloss.NewStyle().
	Foreground(WarningColor).
	Bold(true)

// passwordModel asks for a network password with masked echo.
type passwordModel struct {
	ssid      string
	input     textinput.Model
	submitted bool
	cancelled bool
}

func newPasswordModel(ssid string) passwordModel {
	in := textinput.New()
	in.Placeholder = "leave empty for open networks"
	in.EchoMode = textinput.EchoPassword
	in.EchoCharacter = '•'
	in.CharLimit = MaxPasswordLength
	in.Width = 50
	in.Focus()
	return passwordModel{ssid: ssid, input: in}
}

// Init implements tea.Model
func (m passwordModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model
func (m passwordModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyEnter:
			m.submitted = true
			return m, tea.Quit
		case tea.KeyCtrlC, tea.KeyEsc:
			m.cancelled = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View implements tea.Model
func (m passwordModel) View() string {
	if m.submitted || m.cancelled {
		return ""
	}
	return fmt.Sprintf("  %s\n  %s\n",
		promptStyle.Render(fmt.Sprintf("Password for %q:", m.ssid)),
		m.input.View())
}

// PromptPassword asks for the password of ssid. On a terminal the input is
// masked; otherwise one line is read from in.
func PromptPassword(in io.Reader, out io.Writer, ssid string) (string, error) {
	f, isFile := in.(*os.File)
	o, outFile := out.(*os.File)
	if !isFile || !outFile || !IsTerminal(f) || !IsTerminal(o) {
		return readLine(in)
	}

	final, err := tea.NewProgram(newPasswordModel(ssid), tea.WithInput(in), tea.WithOutput(out)).Run()
	if err != nil {
		return "", err
	}
	m := final.(passwordModel)
	if m.cancelled {
		return "", ErrInterrupted
	}
	return m.input.Value(), nil
}

func readLine(in io.Reader) (string, error) {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		if err == io.EOF {
			return "", nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
