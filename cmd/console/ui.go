package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/cal-poly-dxhub/duck-hunt/pkg/chat"
)

const (
	AgentName       = "Guide"
	PlaceHolderText = "Ask for a clue, or /help..."
	maxTeamEvents   = 8
)

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config       *ConsoleConfig
	client       *APIClient
	chatViewport viewport.Model
	metaViewport viewport.Model
	textarea     textarea.Model
	ready        bool
	width        int
	height       int
	err          error
	loading      bool
	notice       string

	levelID       string
	history       []chat.HistoryMessage
	mapLink       string
	requiresPhoto bool
	status        chat.Status
	teamEvents    []string

	events      chan SSEEvent
	stopEvents  context.CancelFunc
	eventsCtx   context.Context
	streamError error

	showQuitModal bool
	progressTick  int
}

type levelMsg struct {
	resp *chat.LevelResponse
	err  error
}

type chatMsg struct {
	sent string
	resp *chat.MessageResponse
	err  error
}

type clearedMsg struct {
	resp *chat.MessageResponse
	err  error
}

type pingMsg struct{ err error }

type teamEventMsg SSEEvent

type streamClosedMsg struct{ err error }

type progressTickMsg struct{}

var (
	chatPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("220")). // duck yellow
			Bold(true)

	speakerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")).
			Bold(true)

	guideStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("220")).
			Bold(true).
			Align(lipgloss.Center)

	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

func NewConsoleUI(cfg *ConsoleConfig, client *APIClient) ConsoleUI {
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

	ctx, cancel := context.WithCancel(context.Background())
	return ConsoleUI{
		config:       cfg,
		client:       client,
		textarea:     ta,
		chatViewport: chatVp,
		metaViewport: viewport.New(20, 20),
		loading:      true,
		events:       make(chan SSEEvent, 16),
		eventsCtx:    ctx,
		stopEvents:   cancel,
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.refresh(), m.listen(), m.waitForEvent(), progressTick())
}

func (m ConsoleUI) refresh() tea.Cmd {
	return m.scan("")
}

func (m ConsoleUI) scan(levelID string) tea.Cmd {
	return func() tea.Msg {
		resp, err := m.client.Level(m.eventsCtx, levelID)
		return levelMsg{resp, err}
	}
}

func (m ConsoleUI) send(text string) tea.Cmd {
	return func() tea.Msg {
		resp, err := m.client.Message(m.eventsCtx, text)
		return chatMsg{text, resp, err}
	}
}

func (m ConsoleUI) clearChat() tea.Cmd {
	return func() tea.Msg {
		resp, err := m.client.ClearChat(m.eventsCtx)
		return clearedMsg{resp, err}
	}
}

func (m ConsoleUI) ping(lat, lng float64) tea.Cmd {
	return func() tea.Msg {
		return pingMsg{m.client.PingCoordinates(m.eventsCtx, lat, lng)}
	}
}

// listen runs the team event stream in the background.
func (m ConsoleUI) listen() tea.Cmd {
	return func() tea.Msg {
		err := m.client.listenToSSE(m.eventsCtx, m.events)
		return streamClosedMsg{err}
	}
}

func (m ConsoleUI) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		select {
		case ev := <-m.events:
			return teamEventMsg(ev)
		case <-m.eventsCtx.Done():
			return nil
		}
	}
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.chatViewport, vpCmd = m.chatViewport.Update(msg)
		return m, vpCmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.ready = true
		m.render()

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
			m.err = nil
			m.notice = ""
			if strings.HasPrefix(input, "/") {
				return m.handleCommand(input)
			}
			m.loading = true
			m.progressTick = 0
			m.history = append(m.history, chat.HistoryMessage{Role: chat.ChatRoleUser, Content: input, CreatedAt: time.Now()})
			m.render()
			return m, tea.Batch(m.send(input), progressTick())
		}

	case levelMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.applyLevel(msg.resp)
		}
		m.render()
		return m, nil

	case chatMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			// the turn was not stored, drop it
			if n := len(m.history); n > 0 && m.history[n-1].Role == chat.ChatRoleUser && m.history[n-1].Content == msg.sent {
				m.history = m.history[:n-1]
			}
		} else {
			m.history = append(m.history, chat.HistoryMessage{Role: chat.ChatRoleAgent, Content: msg.resp.Message, CreatedAt: time.Now()})
			m.mapLink = linkOrEmpty(msg.resp.MapLink)
			m.status = msg.resp.Status
		}
		m.render()
		return m, nil

	case clearedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			m.render()
			return m, nil
		}
		m.history = nil
		m.notice = "Chat cleared."
		m.render()
		return m, m.refresh()

	case pingMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.notice = "Location sent."
		}
		m.render()
		return m, nil

	case teamEventMsg:
		m.recordEvent(SSEEvent(msg))
		m.render()
		cmds := []tea.Cmd{m.waitForEvent()}
		if msg.Type == "level.completed" || msg.Type == "game.completed" {
			// a teammate scanned, follow them to the next level
			cmds = append(cmds, m.refresh())
		}
		return m, tea.Batch(cmds...)

	case streamClosedMsg:
		m.streamError = msg.err
		m.render()
		return m, nil

	case progressTickMsg:
		if m.loading {
			m.progressTick++
			m.render()
			return m, progressTick()
		}
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.chatViewport, vpCmd = m.chatViewport.Update(msg)
	return m, tea.Batch(tiCmd, vpCmd)
}

func (m *ConsoleUI) applyLevel(resp *chat.LevelResponse) {
	m.levelID = resp.CurrentLevelID
	m.history = resp.MessageHistory
	m.mapLink = linkOrEmpty(resp.MapLink)
	m.requiresPhoto = resp.RequiresPhoto
	m.status = resp.Status
	if resp.Status == chat.StatusLevelAlreadyCompleted {
		m.notice = "That level is already done. Showing your current level."
	}
}

func (m *ConsoleUI) recordEvent(ev SSEEvent) {
	line := time.Now().Format("15:04") + " " + ev.Type
	if user, ok := ev.Data["user_id"].(string); ok && user == m.config.UserID {
		line += " (you)"
	}
	m.teamEvents = append(m.teamEvents, line)
	if len(m.teamEvents) > maxTeamEvents {
		m.teamEvents = m.teamEvents[len(m.teamEvents)-maxTeamEvents:]
	}
}

func (m ConsoleUI) handleCommand(input string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(input)
	switch strings.ToLower(fields[0]) {
	case "/help":
		m.notice = strings.Join([]string{
			"/scan LEVEL_ID - scan a level marker",
			"/refresh - reload the current level",
			"/clear - clear your chat for this level",
			"/ping LAT LNG - send your location",
			"/copy - copy the current level id",
			"/map - copy the map link",
			"/quit - leave the hunt",
		}, "\n")

	case "/scan":
		if len(fields) != 2 {
			m.err = fmt.Errorf("usage: /scan LEVEL_ID")
			break
		}
		m.loading = true
		m.render()
		return m, tea.Batch(m.scan(fields[1]), progressTick())

	case "/refresh":
		m.loading = true
		m.render()
		return m, tea.Batch(m.refresh(), progressTick())

	case "/clear":
		m.loading = true
		m.render()
		return m, tea.Batch(m.clearChat(), progressTick())

	case "/ping":
		if len(fields) != 3 {
			m.err = fmt.Errorf("usage: /ping LAT LNG")
			break
		}
		lat, errLat := strconv.ParseFloat(fields[1], 64)
		lng, errLng := strconv.ParseFloat(fields[2], 64)
		if errLat != nil || errLng != nil {
			m.err = fmt.Errorf("latitude and longitude must be numbers")
			break
		}
		return m, m.ping(lat, lng)

	case "/copy":
		m.copyToClipboard(m.levelID, "Level id")

	case "/map":
		m.copyToClipboard(m.mapLink, "Map link")

	case "/quit":
		m.showQuitModal = true
		return m, nil

	default:
		m.err = fmt.Errorf("unknown command %s, try /help", fields[0])
	}

	m.render()
	return m, nil
}

func (m *ConsoleUI) copyToClipboard(text, what string) {
	if text == "" {
		m.err = fmt.Errorf("%s is not available yet", strings.ToLower(what))
		return
	}
	if err := clipboard.WriteAll(text); err != nil {
		m.err = fmt.Errorf("failed to copy to clipboard: %w", err)
		return
	}
	m.notice = what + " copied to clipboard."
}

func (m *ConsoleUI) layout() {
	chatWidth := int(float64(m.width)*0.72) - 4
	metaWidth := m.width - chatWidth - 6
	m.chatViewport.Width = chatWidth - 2
	m.chatViewport.Height = m.height - 7
	m.metaViewport.Width = metaWidth - 2
	m.metaViewport.Height = m.height - 4
	m.textarea.SetWidth(chatWidth - 4)
}

// render rebuilds both panels for the current width.
func (m *ConsoleUI) render() {
	width := m.chatViewport.Width - 6
	if width < 20 {
		width = 20
	}

	var content strings.Builder
	content.WriteString(titleStyle.Render("DUCK HUNT") + "\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", width)) + "\n\n")

	for _, msg := range m.history {
		switch msg.Role {
		case chat.ChatRoleUser:
			content.WriteString(userStyle.Render("You: ") + wordwrap.String(msg.Content, width-5) + "\n\n")
		default:
			content.WriteString(formatGuideResponse(msg.Content, width) + "\n\n")
		}
	}
	if m.mapLink != "" {
		content.WriteString(hintStyle.Render("Map: "+m.mapLink) + "\n\n")
	}
	if m.notice != "" {
		content.WriteString(promptStyle.Render(m.notice) + "\n\n")
	}
	if m.err != nil {
		content.WriteString(errorStyle.Render("Error: "+m.err.Error()) + "\n\n")
	}
	if m.loading {
		content.WriteString(m.renderProgressBar())
	}

	m.chatViewport.SetContent(content.String())
	m.chatViewport.GotoBottom()
	m.metaViewport.SetContent(m.writeMetadata())
}

func (m ConsoleUI) writeMetadata() string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("TEAM") + "\n\n")
	content.WriteString("Team:\n" + shortID(m.config.TeamID) + "\n\n")
	content.WriteString("You:\n" + shortID(m.config.UserID) + "\n\n")

	content.WriteString("Level:\n")
	switch {
	case m.status == chat.StatusGameCompleted:
		content.WriteString("Finished!\n\n")
	case m.levelID == "":
		content.WriteString("...\n\n")
	default:
		content.WriteString(shortID(m.levelID) + "\n\n")
	}
	if m.requiresPhoto {
		content.WriteString(hintStyle.Render("Upload a team photo to finish.") + "\n\n")
	}

	content.WriteString("Team activity:\n")
	if len(m.teamEvents) == 0 {
		content.WriteString("None yet\n")
	}
	for _, e := range m.teamEvents {
		content.WriteString("• " + e + "\n")
	}
	if m.streamError != nil {
		content.WriteString(errorStyle.Render("stream closed") + "\n")
	}

	content.WriteString("\nCommands:\n")
	content.WriteString("• Enter: Send\n")
	content.WriteString("• /help: Help\n")
	content.WriteString("• Ctrl+C: Quit\n")
	return content.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8] + "..."
	}
	return id
}

func formatGuideResponse(response string, width int) string {
	speaker := AgentName
	body := response
	if idx := strings.Index(response, ": "); idx > 0 && idx <= 40 && !strings.ContainsAny(response[:idx], ".!?\n") {
		speaker = response[:idx]
		body = response[idx+2:]
	}
	prefix := speaker + ": "
	wrapped := wordwrap.String(body, width-len(prefix))
	return speakerStyle.Render(prefix) + guideStyle.Render(wrapped)
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			m.stopEvents()
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y":
				m.stopEvents()
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
	content.WriteString(modalTitleStyle.Render("Leave the hunt?"))
	content.WriteString("\n\n")
	content.WriteString("Your team's progress is saved.")
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

	chatWidth := int(float64(m.width)*0.72) - 4
	metaWidth := m.width - chatWidth - 6

	chatPanel := chatPanelStyle.Width(chatWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.chatViewport.View(),
			"",
			separatorStyle.Render(strings.Repeat("─", chatWidth-4)),
			m.textarea.View(),
		),
	)
	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(m.metaViewport.View())

	return lipgloss.JoinHorizontal(lipgloss.Top, chatPanel, metaPanel)
}

// renderProgressBar draws an animated bar while a request is in flight
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
		switch {
		case i < filled:
			bar.WriteString("█")
		case i == filled && frame%4 < 2:
			bar.WriteString("▓")
		default:
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
