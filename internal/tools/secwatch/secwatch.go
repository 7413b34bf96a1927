// Package secwatch is a terminal view over recent suspicious login
// activity. It polls the admin API and redraws on an interval.
package secwatch

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type Options struct {
	BaseURL  string
	Token    string // admin JWT, sent as a bearer token
	Window   time.Duration
	Interval time.Duration
}

type entry struct {
	UserID            uint      `json:"user_id"`
	Email             string    `json:"email"`
	IPAddress         string    `json:"ip_address"`
	Country           string    `json:"country"`
	City              string    `json:"city"`
	Browser           string    `json:"browser"`
	OS                string    `json:"os"`
	RiskScore         int       `json:"risk_score"`
	SuspiciousReasons []string  `json:"suspicious_reasons"`
	AttemptedAt       time.Time `json:"attempted_at"`
}

type apiEnvelope struct {
	Success bool    `json:"success"`
	Data    []entry `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type model struct {
	opts      Options
	entries   []entry
	selected  int
	fetchedAt time.Time
	err       string
}

type entriesLoadedMsg struct {
	entries []entry
	err     error
}

type tickMsg time.Time

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("244"))
	riskHigh    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	riskMid     = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	riskLow     = lipgloss.NewStyle().Foreground(lipgloss.Color("248"))
	cursorStyle = lipgloss.NewStyle().Bold(true)
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

func Run(opts Options) error {
	if opts.Window <= 0 {
		opts.Window = 24 * time.Hour
	}
	if opts.Interval <= 0 {
		opts.Interval = 15 * time.Second
	}
	p := tea.NewProgram(model{opts: opts}, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (m model) Init() tea.Cmd {
	return tea.Batch(loadEntriesCmd(m.opts), tickCmd(m.opts.Interval))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r":
			return m, loadEntriesCmd(m.opts)
		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}
		case "down", "j":
			if m.selected < len(m.entries)-1 {
				m.selected++
			}
		}
		return m, nil
	case tickMsg:
		return m, tea.Batch(loadEntriesCmd(m.opts), tickCmd(m.opts.Interval))
	case entriesLoadedMsg:
		if msg.err != nil {
			m.err = msg.err.Error()
			return m, nil
		}
		m.entries = msg.entries
		m.fetchedAt = time.Now()
		m.err = ""
		if m.selected >= len(m.entries) {
			m.selected = maxInt(0, len(m.entries)-1)
		}
		return m, nil
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("secwatch  •  suspicious logins, last %s", m.opts.Window)))
	b.WriteString("\n")
	if !m.fetchedAt.IsZero() {
		b.WriteString(helpStyle.Render("updated " + m.fetchedAt.Format("15:04:05")))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	if m.err != "" {
		b.WriteString(errStyle.Render("Error: " + m.err))
		b.WriteString("\n\n")
	}
	b.WriteString(headerStyle.Render(fmt.Sprintf("  %-5s %-28s %-16s %-18s %-5s %s",
		"USER", "EMAIL", "IP", "LOCATION", "RISK", "REASONS")))
	b.WriteString("\n")
	if len(m.entries) == 0 {
		b.WriteString("  (no suspicious activity)\n")
	}
	for i, e := range m.entries {
		prefix := "  "
		if i == m.selected {
			prefix = cursorStyle.Render("> ")
		}
		location := e.City
		if e.Country != "" {
			if location != "" {
				location += ", "
			}
			location += e.Country
		}
		line := fmt.Sprintf("%-5d %-28s %-16s %-18s %s %s",
			e.UserID, truncate(e.Email, 28), e.IPAddress, truncate(location, 18),
			riskStyle(e.RiskScore).Render(fmt.Sprintf("%-5d", e.RiskScore)),
			strings.Join(e.SuspiciousReasons, ","))
		b.WriteString(prefix + line + "\n")
	}
	if e, ok := m.current(); ok {
		b.WriteString("\n")
		b.WriteString(headerStyle.Render("Detail"))
		b.WriteString(fmt.Sprintf("\n  %s  %s/%s  at %s\n",
			e.Email, e.Browser, e.OS, e.AttemptedAt.Format(time.RFC3339)))
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("r refresh  •  j/k move  •  q quit"))
	b.WriteString("\n")
	return b.String()
}

func (m model) current() (entry, bool) {
	if len(m.entries) == 0 || m.selected < 0 || m.selected >= len(m.entries) {
		return entry{}, false
	}
	return m.entries[m.selected], true
}

func riskStyle(score int) lipgloss.Style {
	switch {
	case score > 60:
		return riskHigh
	case score > 30:
		return riskMid
	default:
		return riskLow
	}
}

func loadEntriesCmd(opts Options) tea.Cmd {
	return func() tea.Msg {
		entries, err := fetchSuspicious(opts)
		return entriesLoadedMsg{entries: entries, err: err}
	}
}

func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func fetchSuspicious(opts Options) ([]entry, error) {
	url := fmt.Sprintf("%s/api/v1/admin/security/suspicious?window=%s", opts.BaseURL, opts.Window)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+opts.Token)
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var envelope apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if !envelope.Success {
		if envelope.Error != nil {
			return nil, fmt.Errorf("%s: %s", envelope.Error.Code, envelope.Error.Message)
		}
		return nil, fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	return envelope.Data, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
