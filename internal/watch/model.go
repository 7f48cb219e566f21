package watch

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/revenuleaks/billing-sync-server/internal/status"
	"github.com/revenuleaks/billing-sync-server/internal/versions"
)

// defaultPollInterval is the fixed period between status reads while a
// run is in progress.
const defaultPollInterval = 3 * time.Second

const progressBarWidth = 30

var (
	watchTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			MarginBottom(1)

	stageIdleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Bold(true)

	stageSyncingStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("11")).
				Bold(true)

	stageReadyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")).
			Bold(true)

	stageErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	watchMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Italic(true)

	watchWarnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("208"))

	watchHelpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			MarginTop(1)

	progressFilledStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("10"))

	progressEmptyStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("238"))
)

// statusLoadedMsg carries a fresh status read.
type statusLoadedMsg struct {
	status *status.SyncStatus
}

// statusFailedMsg is a failed status read. The poller stops on it.
type statusFailedMsg struct {
	err error
}

// triggerDoneMsg carries the server's classification of a trigger request.
type triggerDoneMsg struct {
	result *TriggerResult
}

// triggerFailedMsg is a failed trigger request. The poller stops on it.
type triggerFailedMsg struct {
	err error
}

// serverVersionMsg carries the server's version document. A nil info means
// the read failed; the skew check is best-effort and failures are ignored.
type serverVersionMsg struct {
	info *versions.VersionInfo
}

// pollTickMsg fires when the poll interval elapses.
type pollTickMsg time.Time

// Model is the terminal status poller. It performs an immediate status
// read on start, polls on a fixed interval while the stage is syncing,
// and stops on ready, error, or idle. Any transport or authorization
// failure renders a failed state and stops polling.
type Model struct {
	client    Client
	accountID string
	interval  time.Duration

	// localVersion is compared against the server's reported version to
	// warn about client/server skew
	localVersion string

	syncStatus  *status.SyncStatus
	failure     error
	polling     bool
	notice      string
	skewWarning string
	width       int
	quitting    bool
}

// NewModel creates a poller model for one account.
func NewModel(client Client, accountID string) Model {
	return Model{
		client:       client,
		accountID:    accountID,
		interval:     defaultPollInterval,
		localVersion: versions.GetVersionInfo().Version,
		width:        80,
	}
}

// Init performs the immediate status read and the best-effort server
// version check.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.fetchStatus(), m.fetchServerVersion())
}

// Update handles messages and drives the poll loop.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case statusLoadedMsg:
		m.syncStatus = msg.status
		m.failure = nil
		if msg.status != nil && msg.status.Stage == status.StageSyncing {
			m.polling = true
			return m, m.scheduleTick()
		}
		// Terminal stage or idle: stop polling
		m.polling = false
		return m, nil

	case statusFailedMsg:
		m.failure = msg.err
		m.polling = false
		return m, nil

	case pollTickMsg:
		if !m.polling {
			return m, nil
		}
		return m, m.fetchStatus()

	case triggerDoneMsg:
		if msg.result != nil && msg.result.Message != "" {
			m.notice = msg.result.Message
		}
		// Reconcile the optimistic state with the next poll
		m.polling = true
		return m, m.scheduleTick()

	case triggerFailedMsg:
		m.failure = msg.err
		m.polling = false
		return m, nil

	case serverVersionMsg:
		if msg.info != nil && versions.IsNewerVersion(msg.info.Version, m.localVersion) {
			m.skewWarning = fmt.Sprintf("server is running %s, this client is %s", msg.info.Version, m.localVersion)
		}
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "s":
		// Optimistic pending state until the next poll reconciles
		m.syncStatus = &status.SyncStatus{
			AccountID: m.accountID,
			Stage:     status.StageSyncing,
			Progress:  0,
			Message:   "sync requested...",
		}
		m.failure = nil
		m.notice = ""
		m.polling = true
		return m, m.triggerSync()
	case "r":
		return m, m.fetchStatus()
	}

	return m, nil
}

// View renders the stage badge, progress bar, message, and last-synced
// timestamp.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var s strings.Builder

	s.WriteString(watchTitleStyle.Render("Billing Sync • " + m.accountID))
	s.WriteString("\n\n")

	if m.failure != nil {
		s.WriteString(stageErrorStyle.Render("✗ Watch failed"))
		s.WriteString("\n")
		s.WriteString(watchMessageStyle.Render(m.failure.Error()))
		s.WriteString("\n")
		s.WriteString(m.renderHelp())
		return s.String()
	}

	if m.syncStatus == nil {
		s.WriteString(watchMessageStyle.Render("Loading status..."))
		s.WriteString("\n")
		s.WriteString(m.renderHelp())
		return s.String()
	}

	s.WriteString(renderStageBadge(m.syncStatus.Stage))
	s.WriteString("\n")
	s.WriteString(renderProgressBar(m.syncStatus.Progress, progressBarWidth))
	s.WriteString(fmt.Sprintf(" %d%%", m.syncStatus.Progress))
	s.WriteString("\n")

	if m.syncStatus.Message != "" {
		s.WriteString(watchMessageStyle.Render(m.syncStatus.Message))
		s.WriteString("\n")
	}
	if m.syncStatus.LastSyncedAt != nil {
		s.WriteString(watchMessageStyle.Render("Last synced " + formatTimeSince(*m.syncStatus.LastSyncedAt)))
		s.WriteString("\n")
	}
	if m.notice != "" {
		s.WriteString(watchMessageStyle.Render(m.notice))
		s.WriteString("\n")
	}
	if m.skewWarning != "" {
		s.WriteString(watchWarnStyle.Render("⚠ " + m.skewWarning))
		s.WriteString("\n")
	}

	s.WriteString(m.renderHelp())
	return s.String()
}

func (m Model) renderHelp() string {
	help := []string{
		"s: sync now",
		"r: refresh",
		"q: quit",
	}
	return watchHelpStyle.Render(strings.Join(help, " • "))
}

// fetchStatus reads the account's sync status.
func (m Model) fetchStatus() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
		defer cancel()

		syncStatus, err := m.client.GetStatus(ctx, m.accountID)
		if err != nil {
			return statusFailedMsg{err: err}
		}
		return statusLoadedMsg{status: syncStatus}
	}
}

// triggerSync queues a sync run for the account.
func (m Model) triggerSync() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
		defer cancel()

		result, err := m.client.TriggerSync(ctx, m.accountID, false)
		if err != nil {
			return triggerFailedMsg{err: err}
		}
		return triggerDoneMsg{result: result}
	}
}

// fetchServerVersion reads the server's version for the skew warning.
func (m Model) fetchServerVersion() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
		defer cancel()

		info, err := m.client.ServerVersion(ctx)
		if err != nil {
			return serverVersionMsg{}
		}
		return serverVersionMsg{info: info}
	}
}

func (m Model) scheduleTick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return pollTickMsg(t)
	})
}

func renderStageBadge(stage status.SyncStage) string {
	switch stage {
	case status.StageSyncing:
		return stageSyncingStyle.Render("⟳ Syncing")
	case status.StageReady:
		return stageReadyStyle.Render("✓ Ready")
	case status.StageError:
		return stageErrorStyle.Render("✗ Error")
	default:
		return stageIdleStyle.Render("• Idle")
	}
}

func renderProgressBar(progress, width int) string {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	filled := progress * width / 100
	return progressFilledStyle.Render(strings.Repeat("█", filled)) +
		progressEmptyStyle.Render(strings.Repeat("░", width-filled))
}

// formatTimeSince formats a time duration in a human-readable way.
func formatTimeSince(t time.Time) string {
	duration := time.Since(t)

	switch {
	case duration < time.Minute:
		return "just now"
	case duration < time.Hour:
		minutes := int(duration.Minutes())
		if minutes == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", minutes)
	case duration < 24*time.Hour:
		hours := int(duration.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	default:
		days := int(duration.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	}
}
