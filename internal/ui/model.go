// Package ui implements the terminal interface: a conversation sidebar, the
// active chat transcript, and an input box. It renders whatever the session
// core instructs through the Bridge and never mutates chat state itself.
package ui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"studyhall/internal/chat"
	"studyhall/internal/log"
	"studyhall/internal/pubsub"
	"studyhall/internal/session"
	"studyhall/internal/ui/markdown"
	"studyhall/internal/view"
)

const (
	opTimeout   = 30 * time.Second
	sendTimeout = 2 * time.Minute

	// followUpPrompt is sent when the user takes the follow-up affordance.
	followUpPrompt = "Yes, tell me more."
)

type focusArea int

const (
	focusSidebar focusArea = iota
	focusInput
)

// Model is the Bubble Tea model for the studyhall UI.
type Model struct {
	sess *session.Session

	width  int
	height int
	ready  bool
	focus  focusArea

	// Sidebar state.
	summaries []chat.Summary
	cursor    int

	// Active chat display state, driven entirely by bridge messages.
	chatID     string
	header     view.Header
	banner     *view.PinnedBanner
	followUpID string
	messages   []chat.Message
	welcome    bool

	loadingChatID string
	loadErrChatID string
	loadErrText   string

	status  string
	sending bool
	busy    bool

	input textarea.Model
	vp    viewport.Model
	spin  spinner.Model
	md    *markdown.Renderer

	contentDirty bool

	// pendingInput holds the typed text while a send is in flight, so a
	// failed send can put it back.
	pendingInput string

	// sendingChats marks chats with a send in flight, including chats that
	// are no longer active. Map so updates persist across value copies.
	sendingChats map[string]bool

	sessListener *pubsub.Listener[session.Change]
	logListener  *log.LogListener
	lastLog      string
}

// New creates the UI model for a session.
func New(sess *session.Session) Model {
	input := textarea.New()
	input.Placeholder = "Ask your tutor anything..."
	input.CharLimit = 0
	input.SetHeight(3)
	input.ShowLineNumbers = false
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.MiniDot

	return Model{
		sess:         sess,
		focus:        focusInput,
		input:        input,
		spin:         spin,
		welcome:      true,
		sendingChats: make(map[string]bool),
		sessListener: pubsub.NewListener(context.Background(), sess.Events()),
		logListener:  log.NewListener(context.Background()),
	}
}

// Init starts the input cursor blink and loads the conversation list.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textarea.Blink, m.cmdInitialize(), m.sessListener.Listen()}
	if m.logListener != nil {
		cmds = append(cmds, m.logListener.Listen())
	}
	return tea.Batch(cmds...)
}

// Update handles terminal events and bridge messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.ready = true
		m.contentDirty = true
		return m.refreshContent(), nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		if !m.busy && !m.sending && m.loadingChatID == "" {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		m.contentDirty = true
		return m.refreshContent(), cmd

	case opDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.status = msg.err.Error()
		}
		return m, nil

	case sendDoneMsg:
		m.sending = false
		if msg.err != nil {
			m.status = "Message not sent: " + msg.err.Error()
			// Give the typed text back for retry.
			m.input.SetValue(m.pendingInput)
		}
		m.pendingInput = ""
		return m, nil

	case statusMsg:
		m.status = msg.text
		return m, nil

	case pubsub.Event[session.Change]:
		if msg.Payload.Kind == session.ChangeSending {
			m.sendingChats[msg.Payload.ChatID] = m.sess.Sending(msg.Payload.ChatID)
		}
		return m, m.sessListener.Listen()

	case log.LogEvent:
		m.lastLog = strings.TrimSpace(msg.Payload)
		return m, m.logListener.Listen()
	}

	if model, cmd, handled := m.applyBridgeMsg(msg); handled {
		return model.refreshContent(), cmd
	}

	var cmd tea.Cmd
	if m.focus == focusInput {
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

// applyBridgeMsg folds a session instruction into display state.
func (m Model) applyBridgeMsg(msg tea.Msg) (Model, tea.Cmd, bool) {
	switch msg := msg.(type) {
	case resetMessagesMsg:
		m.chatID = msg.chatID
		m.messages = msg.msgs
		m.welcome = false
		m.loadingChatID = ""
		m.loadErrChatID = ""
		m.status = ""
		m.contentDirty = true
		m.vp.GotoBottom()
		return m, nil, true

	case appendMessageMsg:
		if msg.chatID == m.chatID {
			m.messages = append(m.messages, msg.msg)
			m.contentDirty = true
		}
		return m, nil, true

	case removeMessageMsg:
		if msg.chatID == m.chatID {
			for i := range m.messages {
				if m.messages[i].ID == msg.messageID {
					m.messages = append(m.messages[:i], m.messages[i+1:]...)
					break
				}
			}
			m.contentDirty = true
		}
		return m, nil, true

	case updateMessageMsg:
		if msg.chatID == m.chatID {
			for i := range m.messages {
				if m.messages[i].ID == msg.msg.ID {
					m.messages[i] = msg.msg
					break
				}
			}
			m.contentDirty = true
		}
		return m, nil, true

	case setHeaderMsg:
		m.header = msg.header
		return m, nil, true

	case setBannerMsg:
		m.banner = msg.banner
		m.contentDirty = true
		return m, nil, true

	case setFollowUpMsg:
		m.followUpID = msg.messageID
		m.contentDirty = true
		return m, nil, true

	case chatLoadingMsg:
		m.loadingChatID = msg.chatID
		m.loadErrChatID = ""
		return m, m.spin.Tick, true

	case chatLoadErrMsg:
		m.loadingChatID = ""
		m.loadErrChatID = msg.chatID
		m.loadErrText = msg.err.Error()
		return m, nil, true

	case setSummariesMsg:
		selected := m.selectedChatID()
		m.summaries = msg.summaries
		m.cursor = 0
		for i, s := range m.summaries {
			if s.ID == selected {
				m.cursor = i
				break
			}
		}
		return m, nil, true

	case showWelcomeMsg:
		m.welcome = true
		m.chatID = ""
		m.messages = nil
		m.banner = nil
		m.followUpID = ""
		m.header = view.Header{}
		m.contentDirty = true
		return m, nil, true
	}
	return m, nil, false
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "tab":
		if m.focus == focusSidebar {
			m.focus = focusInput
			m.input.Focus()
		} else {
			m.focus = focusSidebar
			m.input.Blur()
		}
		return m, nil
	case "ctrl+n":
		m.busy = true
		return m, tea.Batch(m.cmdCreateChat(), m.spin.Tick)
	case "ctrl+f":
		if m.followUpID != "" && !m.sending {
			return m.startSend(followUpPrompt)
		}
		return m, nil
	}

	if m.focus == focusSidebar {
		return m.handleSidebarKey(msg)
	}
	return m.handleInputKey(msg)
}

func (m Model) handleSidebarKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case "down", "j":
		if m.cursor < len(m.summaries)-1 {
			m.cursor++
		}
		return m, nil
	case "enter":
		if id := m.selectedChatID(); id != "" {
			m.busy = true
			return m, tea.Batch(m.cmdSetActive(id), m.spin.Tick)
		}
		return m, nil
	case "p":
		if id := m.selectedChatID(); id != "" {
			m.sess.TogglePin(id)
		}
		return m, nil
	case "d":
		if id := m.selectedChatID(); id != "" {
			m.busy = true
			return m, tea.Batch(m.cmdDeleteChat(id), m.spin.Tick)
		}
		return m, nil
	case "r":
		// Retry a failed chat load.
		if m.loadErrChatID != "" {
			id := m.loadErrChatID
			m.busy = true
			return m, tea.Batch(m.cmdSetActive(id), m.spin.Tick)
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.focus = focusSidebar
		m.input.Blur()
		return m, nil
	case "ctrl+b":
		// Pin or unpin the most recent message.
		if m.chatID != "" && len(m.messages) > 0 {
			m.sess.TogglePinnedMessage(m.chatID, m.messages[len(m.messages)-1].ID)
		}
		return m, nil
	case "enter":
		text := m.input.Value()
		if text == "" || m.sending || m.chatID == "" {
			return m, nil
		}
		return m.startSend(text)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) startSend(text string) (tea.Model, tea.Cmd) {
	m.sending = true
	m.status = ""
	m.pendingInput = text
	m.input.Reset()
	return m, tea.Batch(m.cmdSend(text), m.spin.Tick)
}

func (m Model) selectedChatID() string {
	if m.cursor < 0 || m.cursor >= len(m.summaries) {
		return ""
	}
	return m.summaries[m.cursor].ID
}

// layout sizes the panes from the terminal dimensions.
func (m *Model) layout() {
	sidebarW := m.width / 4
	if sidebarW < 24 {
		sidebarW = 24
	}
	chatW := m.width - sidebarW - 6
	if chatW < 20 {
		chatW = 20
	}
	vpHeight := m.height - m.input.Height() - 7
	if vpHeight < 3 {
		vpHeight = 3
	}
	if m.vp.Width == 0 {
		m.vp = viewport.New(chatW, vpHeight)
	} else {
		m.vp.Width = chatW
		m.vp.Height = vpHeight
	}
	m.input.SetWidth(chatW)
}

type sendDoneMsg struct{ err error }

func (m Model) cmdInitialize() tea.Cmd {
	sess := m.sess
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		sess.Initialize(ctx)
		return nil
	}
}

func (m Model) cmdSetActive(id string) tea.Cmd {
	sess := m.sess
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		return opDoneMsg{err: sess.SetActive(ctx, id)}
	}
}

func (m Model) cmdCreateChat() tea.Cmd {
	sess := m.sess
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		_, err := sess.CreateChat(ctx)
		return opDoneMsg{err: err}
	}
}

func (m Model) cmdDeleteChat(id string) tea.Cmd {
	sess := m.sess
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		return opDoneMsg{err: sess.DeleteChat(ctx, id)}
	}
}

func (m Model) cmdSend(text string) tea.Cmd {
	sess := m.sess
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		err := sess.Send(ctx, text)
		if err != nil {
			log.Debug(log.CatUI, "send reported failure", "error", err.Error())
		}
		return sendDoneMsg{err: err}
	}
}
