package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/jwebster45206/lifequest/internal/handlers"
	"github.com/jwebster45206/lifequest/pkg/chat"
	"github.com/jwebster45206/lifequest/pkg/game"
)

const PlaceHolderText = "Tell the system what you did today..."

// line is one rendered chat entry.
type line struct {
	sender  game.Persona
	user    bool
	text    string
	replies []game.QuickReply
}

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config       *ConsoleConfig
	client       *http.Client
	snapshot     *handlers.PlayerSnapshot
	history      []line
	chatViewport viewport.Model
	metaViewport viewport.Model
	textarea     textarea.Model
	ready        bool
	width        int
	height       int
	loading      bool
	notice       string

	showQuitModal bool
	progressTick  int
}

type turnResponseMsg struct {
	response *chat.TurnResponse
	err      error
}

type playerMsg struct {
	snapshot *handlers.PlayerSnapshot
	err      error
}

type progressTickMsg struct{}

var (
	chatPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	systemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")). // green
			Bold(true)

	mentorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)

	viperStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")). // red
			Bold(true)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	loadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)
)

var separatorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("240")) // dark grey

func NewConsoleUI(cfg *ConsoleConfig, client *http.Client) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 1000
	ta.SetWidth(50)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	chatVp := viewport.New(50, 20)
	chatVp.MouseWheelEnabled = true

	metaVp := viewport.New(20, 20)

	return ConsoleUI{
		config:       cfg,
		client:       client,
		textarea:     ta,
		chatViewport: chatVp,
		metaViewport: metaVp,
	}
}

func personaLabel(p game.Persona) string {
	switch p {
	case game.PersonaMentor:
		return mentorStyle.Render("Mentor:")
	case game.PersonaViper:
		return viperStyle.Render(game.RivalName + ":")
	default:
		return systemStyle.Render("System:")
	}
}

func writeMetadata(snap *handlers.PlayerSnapshot) string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("STATUS") + "\n\n")

	if snap == nil || snap.Player == nil {
		content.WriteString("No character yet.\nSay hello to begin.\n")
		return content.String()
	}
	p := snap.Player

	content.WriteString(fmt.Sprintf("%s  Lv.%d\n\n", p.DisplayName, p.Level))
	content.WriteString(fmt.Sprintf("HP:   %d/%d (%s)\n", p.Vitals.HP, p.Vitals.MaxHP, p.Vitals.Status))
	content.WriteString(fmt.Sprintf("Gold: %d\n", p.Gold))
	content.WriteString(fmt.Sprintf("Streak: %d days\n\n", p.StreakCount))

	content.WriteString("Attributes:\n")
	for _, a := range game.Attributes {
		content.WriteString(fmt.Sprintf("• %s %d\n", a, p.Attrs.Get(a)))
	}

	if snap.Rival != nil {
		content.WriteString(fmt.Sprintf("\nRival:\n%s Lv.%d\n", snap.Rival.Name, snap.Rival.Level))
	}

	content.WriteString("\nToday:\n")
	if len(snap.Quests) == 0 {
		content.WriteString("No quests\n")
	}
	for _, q := range snap.Quests {
		mark := "○"
		if q.Status == game.QuestDone {
			mark = "●"
		}
		content.WriteString(fmt.Sprintf("%s [%s] %s\n", mark, q.Tier, q.Title))
	}

	if len(snap.Buffs) > 0 {
		content.WriteString("\nBuffs:\n")
		for _, b := range snap.Buffs {
			content.WriteString(fmt.Sprintf("• %s x%.2f\n", b.Target, b.Multiplier))
		}
	}

	content.WriteString("\n")
	content.WriteString("Commands:\n")
	content.WriteString("• Enter: Send\n")
	content.WriteString("• /1../9: Press button\n")
	content.WriteString("• /status /quests\n")
	content.WriteString("• /copy: Copy reply\n")
	content.WriteString("• Ctrl+C: Quit\n")

	return content.String()
}

// writeChatContent renders the history for the current viewport width.
func (m *ConsoleUI) writeChatContent() {
	chatWidth := m.chatViewport.Width - 6 // left(3) + right(3) padding
	if chatWidth < 10 {
		chatWidth = 10
	}

	var content strings.Builder
	content.WriteString(titleStyle.Render("LIFEQUEST") + "\n\n")
	content.WriteString("Report what you did, ask for quests, or just talk.\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", chatWidth)) + "\n\n")

	for _, l := range m.history {
		if l.user {
			content.WriteString(userStyle.Render("You: ") + wordwrap.String(l.text, chatWidth-5) + "\n\n")
			continue
		}
		content.WriteString(personaLabel(l.sender) + "\n")
		content.WriteString(wordwrap.String(l.text, chatWidth) + "\n")
		for i, qr := range l.replies {
			content.WriteString(promptStyle.Render(fmt.Sprintf("  [/%d] %s", i+1, qr.Label)) + "\n")
		}
		content.WriteString("\n")
	}

	if m.notice != "" {
		content.WriteString(m.notice + "\n\n")
	}
	if m.loading {
		content.WriteString(m.renderProgressBar())
	}

	m.chatViewport.SetContent(content.String())
	m.chatViewport.GotoBottom()
}

func (m ConsoleUI) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.refreshPlayer())
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		mvCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.chatViewport, vpCmd = m.chatViewport.Update(msg)
		m.metaViewport, mvCmd = m.metaViewport.Update(msg)
		return m, tea.Batch(vpCmd, mvCmd)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		chatWidth := int(float64(m.width)*0.7) - 4
		metaWidth := m.width - chatWidth - 6

		m.chatViewport.Width = chatWidth - 2
		m.chatViewport.Height = m.height - 7
		m.metaViewport.Width = metaWidth - 2
		m.metaViewport.Height = m.height - 4
		m.textarea.SetWidth(chatWidth - 4)

		m.ready = true
		m.writeChatContent()
		m.metaViewport.SetContent(writeMetadata(m.snapshot))

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyEnter:
			if m.loading {
				return m, nil
			}
			input := strings.TrimSpace(m.textarea.Value())
			if input == "" {
				return m, nil
			}
			m.textarea.Reset()
			if strings.HasPrefix(input, "/") {
				return m.handleCommand(input)
			}
			m.history = append(m.history, line{user: true, text: input})
			return m.send(chat.TurnRequest{Message: input})
		}

	case turnResponseMsg:
		m.loading = false
		if msg.err != nil {
			m.notice = errorStyle.Render("Error: " + msg.err.Error())
		} else {
			res := msg.response.Result
			text := res.Text
			if res.Metadata.PreText != "" {
				text = res.Metadata.PreText + "\n\n" + text
			}
			if res.Metadata.AudioCue == game.AudioLevelUp {
				text = "♪ LEVEL UP ♪\n" + text
			}
			m.history = append(m.history, line{
				sender:  res.Metadata.Sender,
				text:    text,
				replies: res.QuickReplies,
			})
		}
		m.writeChatContent()
		return m, m.refreshPlayer()

	case playerMsg:
		if msg.err == nil {
			m.snapshot = msg.snapshot
		} else if !errors.Is(msg.err, errPlayerNotFound) {
			m.notice = errorStyle.Render("Error: " + msg.err.Error())
			m.writeChatContent()
		}
		m.metaViewport.SetContent(writeMetadata(m.snapshot))

	case progressTickMsg:
		if m.loading {
			m.progressTick++
			m.writeChatContent()
			return m, progressTick()
		}
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.chatViewport, vpCmd = m.chatViewport.Update(msg)
	m.metaViewport, mvCmd = m.metaViewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, mvCmd)
}

func (m ConsoleUI) send(req chat.TurnRequest) (tea.Model, tea.Cmd) {
	m.loading = true
	m.progressTick = 0
	m.notice = ""
	m.writeChatContent()
	return m, tea.Batch(m.sendTurn(req), progressTick())
}

// lastReplies returns the quick replies of the latest system message.
func (m ConsoleUI) lastReplies() []game.QuickReply {
	for i := len(m.history) - 1; i >= 0; i-- {
		if !m.history[i].user {
			return m.history[i].replies
		}
	}
	return nil
}

func (m ConsoleUI) handleCommand(input string) (tea.Model, tea.Cmd) {
	cmd := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(input, "/")))

	if n, err := strconv.Atoi(cmd); err == nil {
		replies := m.lastReplies()
		if n < 1 || n > len(replies) {
			m.notice = errorStyle.Render(fmt.Sprintf("No button %d.", n))
			m.writeChatContent()
			return m, nil
		}
		qr := replies[n-1]
		m.history = append(m.history, line{user: true, text: "[" + qr.Label + "]"})
		return m.send(chat.TurnRequest{Postback: qr.ActionData})
	}

	switch cmd {
	case "status", "quests", "inventory":
		m.history = append(m.history, line{user: true, text: "/" + cmd})
		return m.send(chat.TurnRequest{Postback: "action=" + cmd})

	case "copy":
		for i := len(m.history) - 1; i >= 0; i-- {
			if m.history[i].user {
				continue
			}
			if err := clipboard.WriteAll(m.history[i].text); err != nil {
				m.notice = errorStyle.Render("Copy failed: " + err.Error())
			} else {
				m.notice = loadingStyle.Render("Copied last reply.")
			}
			break
		}

	case "help":
		m.notice = titleStyle.Render("Help:") + `
• Type what you did ("ran 5k", "read 30 pages") and press Enter
• /1 to /9 press the buttons under the last reply
• /status, /quests, /inventory show your sheet
• /copy copies the last reply
• Ctrl+C quits`

	default:
		m.notice = errorStyle.Render("Unknown command " + input)
	}

	m.writeChatContent()
	return m, nil
}

func (m ConsoleUI) sendTurn(req chat.TurnRequest) tea.Cmd {
	req.PlayerID = m.config.PlayerID
	req.DisplayName = m.config.DisplayName
	return func() tea.Msg {
		resp, err := sendTurn(m.client, m.config.APIBaseURL, req)
		return turnResponseMsg{resp, err}
	}
}

func (m ConsoleUI) refreshPlayer() tea.Cmd {
	return func() tea.Msg {
		snap, err := getPlayer(m.client, m.config.APIBaseURL, m.config.PlayerID)
		return playerMsg{snap, err}
	}
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y":
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
				m.textarea.Focus()
				return m, textarea.Blink
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit?"))
	content.WriteString("\n\n")
	content.WriteString("Your progress is saved on the server.")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}

	if !m.ready {
		return "\n  Initializing..."
	}

	chatWidth := int(float64(m.width)*0.7) - 4
	metaWidth := m.width - chatWidth - 6

	chatPanel := chatPanelStyle.Width(chatWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.chatViewport.View(),
			"",
			separatorStyle.Render(strings.Repeat("─", chatWidth-4)),
			m.textarea.View(),
		),
	)

	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(
		m.metaViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, chatPanel, metaPanel)
}

// renderProgressBar draws the waiting animation.
func (m ConsoleUI) renderProgressBar() string {
	usable := m.chatViewport.Width - 6
	if usable > 80 {
		usable = 80
	} else if usable < 10 {
		usable = 10
	}

	const totalFrames = 40
	frame := m.progressTick % totalFrames
	filled := (frame * usable) / totalFrames

	var bar strings.Builder
	for i := 0; i < usable; i++ {
		if i < filled {
			bar.WriteString("█")
		} else if i == filled && frame%4 < 2 {
			bar.WriteString("▓")
		} else {
			bar.WriteString("░")
		}
	}
	return separatorStyle.Render(bar.String())
}

func progressTick() tea.Cmd {
	return tea.Tick(time.Millisecond*200, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}
