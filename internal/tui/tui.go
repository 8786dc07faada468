// Package tui is the interactive terminal front end for a game session.
package tui

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/lox/passthepresent/internal/deck"
	"github.com/lox/passthepresent/internal/dice"
	"github.com/lox/passthepresent/internal/i18n"
	"github.com/lox/passthepresent/internal/session"
	"github.com/lox/passthepresent/internal/timer"
)

// Game is the part of the session controller the UI drives.
type Game interface {
	Snapshot() session.GameState
	Subscribe(fn func(session.GameState)) func()

	StartRound() error
	UpdateRound(round int) error
	SetRuleMode(mode deck.Mode) error
	AddPlayer(name string) bool

	PauseTimer() bool
	ResumeTimer() bool

	DrawCard() (deck.Card, bool)
	ReturnCard(card deck.Card) bool
	SaveCard(card deck.Card, player string) bool
	ClearCurrentCard()
	RollDice() (dice.Result, error)
}

type inputMode int

const (
	inputNone inputMode = iota
	inputAddPlayer
	inputKeepCard
)

// lowTime is the remaining seconds below which the clock turns red.
const lowTime = 60

type stateMsg session.GameState

// QuitMsg stops the program.
type QuitMsg struct{}

// Model is the bubbletea model for one game.
type Model struct {
	game   Game
	tr     *i18n.Translator
	logger *log.Logger

	history viewport.Model
	input   textinput.Model
	mode    inputMode

	state       session.GameState
	seenEvents  int
	lastRoll    *dice.Result
	feedback    string
	feedbackErr bool

	updates     chan session.GameState
	unsubscribe func()

	width    int
	height   int
	quitting bool
}

// New builds a model that follows game through its subscription.
func New(game Game, tr *i18n.Translator, logger *log.Logger) *Model {
	vp := viewport.New(10, 5)

	ti := textinput.New()
	ti.CharLimit = 40
	ti.Width = 40
	ti.Prompt = "> "
	ti.PromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)

	m := &Model{
		game:    game,
		tr:      tr,
		logger:  logger.WithPrefix("tui"),
		history: vp,
		input:   ti,
		updates: make(chan session.GameState, 1),
	}
	s := game.Snapshot()
	m.seenEvents = len(s.GameHistory)
	m.apply(s)
	m.unsubscribe = game.Subscribe(m.publish)
	return m
}

// publish hands the newest state to the UI loop, replacing any state the
// loop has not picked up yet.
func (m *Model) publish(s session.GameState) {
	for {
		select {
		case m.updates <- s:
			return
		default:
		}
		select {
		case <-m.updates:
		default:
		}
	}
}

func (m *Model) waitForState() tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-m.updates)
	}
}

// Close stops following the game.
func (m *Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}

func (m *Model) Init() tea.Cmd {
	return m.waitForState()
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case QuitMsg:
		m.quitting = true
		return m, tea.Quit

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.logger.Debug("resized", "width", m.width, "height", m.height)
		return m, nil

	case stateMsg:
		m.apply(session.GameState(msg))
		return m, m.waitForState()

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
		if m.mode != inputNone {
			return m.updateInput(msg)
		}
		return m.handleKey(msg.String())
	}
	return m, nil
}

func (m *Model) handleKey(key string) (tea.Model, tea.Cmd) {
	m.logger.Debug("key", "key", key)

	switch key {
	case "q", "esc":
		m.quitting = true
		return m, tea.Quit
	case " ", "space":
		m.togglePause()
	case "s":
		m.startRound()
	case "d":
		m.drawCard()
	case "r":
		m.returnCard()
	case "c":
		m.game.ClearCurrentCard()
		m.setFeedback("", false)
	case "k":
		if m.state.CardDeck.CurrentCard == nil {
			m.setFeedback(m.tr.T("ui.noCard"), true)
			break
		}
		m.openInput(inputKeepCard)
		return m, textinput.Blink
	case "p":
		m.openInput(inputAddPlayer)
		return m, textinput.Blink
	case "x":
		m.rollDice()
	case "n":
		m.nextRound()
	case "m":
		m.cycleMode()
	}
	m.refresh()
	return m, nil
}

func (m *Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.closeInput()
		return m, nil
	case "enter":
		m.submitInput(strings.TrimSpace(m.input.Value()))
		m.closeInput()
		m.refresh()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) openInput(mode inputMode) {
	m.mode = mode
	m.input.Placeholder = m.tr.T("ui.playerName")
	m.input.SetValue("")
	m.input.Focus()
}

func (m *Model) closeInput() {
	m.mode = inputNone
	m.input.Blur()
	m.input.SetValue("")
}

func (m *Model) submitInput(name string) {
	if name == "" {
		return
	}
	switch m.mode {
	case inputAddPlayer:
		if m.game.AddPlayer(name) {
			m.setFeedback(name, false)
		}
	case inputKeepCard:
		card := m.state.CardDeck.CurrentCard
		if card == nil {
			return
		}
		if m.game.SaveCard(*card, name) {
			m.setFeedback(fmt.Sprintf("%s: %s", name, m.tr.T(card.Text)), false)
		}
	}
}

func (m *Model) togglePause() {
	switch m.state.Timer.Status() {
	case timer.Running:
		m.game.PauseTimer()
	case timer.Paused:
		m.game.ResumeTimer()
	}
}

func (m *Model) startRound() {
	if err := m.game.StartRound(); err != nil {
		m.setFeedback(err.Error(), true)
		return
	}
	m.setFeedback("", false)
}

func (m *Model) drawCard() {
	card, ok := m.game.DrawCard()
	if !ok {
		m.setFeedback(m.tr.T("ui.deckEmpty"), true)
		return
	}
	m.logger.Info("card drawn", "card", card.ID)
	m.setFeedback("", false)
}

func (m *Model) returnCard() {
	card := m.state.CardDeck.CurrentCard
	if card == nil {
		m.setFeedback(m.tr.T("ui.noCard"), true)
		return
	}
	m.game.ReturnCard(*card)
}

func (m *Model) rollDice() {
	res, err := m.game.RollDice()
	if err != nil {
		m.setFeedback(err.Error(), true)
		return
	}
	m.lastRoll = &res
	m.setFeedback("", false)
}

func (m *Model) nextRound() {
	if m.state.CurrentRound >= 3 {
		return
	}
	if err := m.game.UpdateRound(m.state.CurrentRound + 1); err != nil {
		m.setFeedback(err.Error(), true)
	}
	m.lastRoll = nil
}

func (m *Model) cycleMode() {
	i := slices.Index(deck.Modes, m.state.RuleMode)
	next := deck.Modes[(i+1)%len(deck.Modes)]
	if err := m.game.SetRuleMode(next); err != nil {
		m.setFeedback(err.Error(), true)
	}
}

func (m *Model) setFeedback(text string, isErr bool) {
	m.feedback = text
	m.feedbackErr = isErr
}

func (m *Model) refresh() {
	m.apply(m.game.Snapshot())
}

// apply adopts s and announces the warnings and round ends recorded since
// the last state.
func (m *Model) apply(s session.GameState) {
	if len(s.GameHistory) < m.seenEvents {
		m.seenEvents = 0
	}
	for _, ev := range s.GameHistory[m.seenEvents:] {
		switch ev.Type {
		case session.EventTimerWarning:
			var data struct {
				Warning timer.Warning `json:"warning"`
			}
			if err := json.Unmarshal(ev.Data, &data); err == nil {
				m.setFeedback(m.tr.T(data.Warning.MessageKey()), true)
			}
		case session.EventRoundOver:
			m.setFeedback(m.tr.T("timer.roundOver"), true)
		}
	}
	m.seenEvents = len(s.GameHistory)
	m.state = s
	m.history.SetContent(m.renderHistory())
	m.history.GotoBottom()
}

// State returns the state the UI last rendered.
func (m *Model) State() session.GameState {
	return m.state
}

// Feedback returns the message shown above the help line.
func (m *Model) Feedback() string {
	return m.feedback
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	header := HeaderStyle.Render(m.tr.T("app.title"))

	sidebar := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#626262")).
		Width(28).
		Render(m.renderPlayers())

	mainWidth := max(m.width-32, 20)
	main := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#04B575")).
		Width(mainWidth).
		Render(m.renderRound())

	top := lipgloss.JoinHorizontal(lipgloss.Top, main, sidebar)

	m.history.Width = max(m.width-2, 10)
	m.history.Height = max(m.height-lipgloss.Height(top)-lipgloss.Height(header)-6, 3)
	history := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#626262")).
		Render(m.history.View())

	return lipgloss.JoinVertical(lipgloss.Left, header, top, history, m.renderFooter())
}

func (m *Model) renderRound() string {
	var b strings.Builder
	s := m.state

	fmt.Fprintf(&b, "%s %d · %s: %s · %s\n\n",
		m.tr.T("ui.round"), s.CurrentRound,
		m.tr.T("ui.mode"), m.tr.T("modes."+string(s.RuleMode)),
		m.tr.T("status."+string(s.RoundStatus)))

	b.WriteString(m.renderClock())
	b.WriteString("\n\n")

	if card := s.CardDeck.CurrentCard; card != nil {
		style := GameCardStyle
		if card.Type == deck.TypeChance {
			style = ChanceCardStyle
		}
		b.WriteString(style.Render(strings.TrimSpace(card.Icon + " " + m.tr.T(card.Text))))
	} else {
		b.WriteString(InfoStyle.Render(m.tr.T("ui.noCard")))
	}
	fmt.Fprintf(&b, "\n%d %s", len(s.CardDeck.Available), m.tr.T("ui.cardsLeft"))

	if m.lastRoll != nil {
		fmt.Fprintf(&b, "\n\n%s: %d · %s", m.tr.T("ui.lastRoll"), m.lastRoll.Value, m.tr.T(m.lastRoll.Rule))
	}
	return b.String()
}

func (m *Model) renderClock() string {
	t := m.state.Timer
	label := m.tr.T("ui.timeRemaining") + ": "
	switch t.Status() {
	case timer.Idle:
		if t.TotalTime == 0 {
			return label + InfoStyle.Render(m.tr.T("timer.noLimit"))
		}
	case timer.Paused:
		return label + TimerStyle.Render(timer.FormatTime(t.TimeRemaining)) + " " + WarningStyle.Render(m.tr.T("ui.paused"))
	}
	style := TimerStyle
	if t.TimeRemaining <= lowTime {
		style = TimerLowStyle
	}
	return label + style.Render(timer.FormatTime(t.TimeRemaining))
}

func (m *Model) renderPlayers() string {
	var b strings.Builder
	b.WriteString(m.tr.T("ui.players"))
	b.WriteString("\n")
	for _, p := range m.state.Players {
		fmt.Fprintf(&b, "  %s", p.Name)
		if n := len(p.SavedCards); n > 0 {
			fmt.Fprintf(&b, " (%d %s)", n, m.tr.T("ui.savedCards"))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) renderHistory() string {
	lines := make([]string, 0, len(m.state.GameHistory))
	for _, ev := range m.state.GameHistory {
		line := ev.Timestamp.Local().Format("15:04:05") + " " + ev.Type
		if len(ev.Data) > 0 {
			line += " " + InfoStyle.Render(string(ev.Data))
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderFooter() string {
	var b strings.Builder
	if m.mode != inputNone {
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}
	if m.feedback != "" {
		style := SuccessStyle
		if m.feedbackErr {
			style = ErrorStyle
		}
		b.WriteString(style.Render(m.feedback))
		b.WriteString("\n")
	}
	b.WriteString(InfoStyle.Render(m.tr.T("ui.help")))
	return b.String()
}
