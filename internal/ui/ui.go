package ui

import (
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/jdefrancesco/dups/internal/dfs"
	"github.com/jdefrancesco/dups/internal/dlog"
	"github.com/jdefrancesco/dups/internal/dmap"
	"github.com/jdefrancesco/dups/pkg/utils"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/afero"
)

// Styles using Lip Gloss
var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")).
			Bold(true).
			Padding(0, 1)

	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("35")).
			Padding(0, 1)

	normalFileStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	markedFileStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	deletedFileStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Strikethrough(true)

	selectedStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("240")).
			Bold(true)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("220")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true)
)

type sortMode int

const (
	sortByWalkOrder sortMode = iota
	sortByWasted
	sortByCount
)

func (s sortMode) String() string {
	switch s {
	case sortByWasted:
		return "wasted space"
	case sortByCount:
		return "copies"
	default:
		return "scan order"
	}
}

// action is what a confirmed dialog does to the marked files.
type action int

const (
	actionDelete action = iota
	actionMove
)

func (a action) verb() string {
	if a == actionMove {
		return "move"
	}
	return "delete"
}

// Options configure an interactive session.
type Options struct {
	// MoveTarget receives marked files on "v". Empty disables moving.
	MoveTarget string
}

// Outcome is what an interactive session did to the tree.
type Outcome struct {
	Removed  []string
	Moved    []dmap.MovedFile
	Warnings []error
}

// TreeNode represents a node in the tree
type TreeNode struct {
	Text     string
	Children []*TreeNode
	Expanded bool
	Level    int
	IsFile   bool
	FilePath string
	IsMarked bool
	Deleted  bool
	Parent   *TreeNode

	// Set on group headers only.
	group *dmap.Group
	order int
}

// Model holds the state of the TUI
type Model struct {
	fs            afero.Fs
	root          *TreeNode
	flatList      []*TreeNode
	cursor        int
	markedFiles   map[string]*TreeNode
	sortMode      sortMode
	width         int
	status        string
	removed       []string
	moved         []dmap.MovedFile
	moveTarget    string
	diag          *dfs.Diagnostics
	showingDialog bool
	dialogAction  action
	dialogInput   string
	dialogCode    string
	dialogError   string
	quitting      bool
}

// Program instance to allow stopping from main
var Program *tea.Program

// LaunchTUI lets the user review the groups of res and delete or move
// marked copies through fs. Failed deletions and moves are reported in the
// returned Outcome's Warnings.
func LaunchTUI(fs afero.Fs, res *dmap.ScanResult, opts Options) (Outcome, error) {
	m := initialModel(fs, res)
	m.moveTarget = opts.MoveTarget
	Program = tea.NewProgram(m, tea.WithAltScreen())

	final, err := Program.Run()
	if fm, ok := final.(Model); ok {
		m = fm
	}
	if err != nil {
		return m.outcome(), fmt.Errorf("running interactive review: %w", err)
	}
	return m.outcome(), nil
}

func (m Model) outcome() Outcome {
	return Outcome{
		Removed:  m.removed,
		Moved:    m.moved,
		Warnings: m.diag.Warnings(),
	}
}

// Stop tears the program down and restores the terminal.
func Stop() {
	if Program != nil {
		Program.Kill()
	}
}

// initialModel creates the initial model for the TUI
func initialModel(fs afero.Fs, res *dmap.ScanResult) Model {
	root := buildTree(res)
	markedFiles := make(map[string]*TreeNode)

	// Auto-mark all but the first file in each duplicate group
	autoMarkFiles(root, markedFiles)

	m := Model{
		fs:          fs,
		root:        root,
		markedFiles: markedFiles,
		diag:        &dfs.Diagnostics{},
	}

	// Build flat list for navigation
	m.rebuildFlatList()

	return m
}

// Init is called when the program starts
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showingDialog {
		return m.updateDialog(msg)
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tea.KeyMsg:
		m.status = ""
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}

		case "down", "j":
			if m.cursor < len(m.flatList)-1 {
				m.cursor++
			}

		case "enter", " ":
			// Toggle expand/collapse
			if m.cursor < len(m.flatList) {
				node := m.flatList[m.cursor]
				if !node.IsFile && len(node.Children) > 0 {
					node.Expanded = !node.Expanded
					m.rebuildFlatList()
				}
			}

		case "m":
			if m.cursor < len(m.flatList) {
				m.toggleMark(m.flatList[m.cursor])
			}

		case "s":
			m.sortMode = (m.sortMode + 1) % 3
			m.sortGroups()
			m.rebuildFlatList()

		case "d":
			m.openDialog(actionDelete)

		case "v":
			if m.moveTarget == "" {
				m.status = "No move directory configured."
				break
			}
			m.openDialog(actionMove)
		}
	}

	return m, nil
}

func (m *Model) openDialog(a action) {
	if len(m.markedFiles) == 0 {
		return
	}
	m.showingDialog = true
	m.dialogAction = a
	m.dialogCode = GenConfirmationCode()
	m.dialogInput = ""
	m.dialogError = ""
}

// toggleMark flips the mark on a file node. Marking the last unmarked copy
// of a group is refused.
func (m *Model) toggleMark(node *TreeNode) {
	if !node.IsFile || node.Deleted {
		return
	}
	if node.IsMarked {
		delete(m.markedFiles, node.FilePath)
		node.IsMarked = false
		return
	}

	kept := 0
	for _, sibling := range node.Parent.Children {
		if !sibling.Deleted && !sibling.IsMarked {
			kept++
		}
	}
	if kept <= 1 {
		m.status = "At least one copy of every file must be kept."
		return
	}
	m.markedFiles[node.FilePath] = node
	node.IsMarked = true
}

// updateDialog handles updates when the confirmation dialog is shown
func (m Model) updateDialog(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			m.showingDialog = false
			m.dialogInput = ""
			m.dialogError = ""

		case "enter":
			if m.dialogInput == m.dialogCode {
				m.performAction(m.dialogAction)
				m.showingDialog = false
				m.dialogInput = ""
				m.dialogError = ""
				m.rebuildFlatList()
			} else {
				m.dialogError = "Incorrect code. Try again."
				m.dialogInput = ""
			}

		case "backspace":
			if len(m.dialogInput) > 0 {
				m.dialogInput = m.dialogInput[:len(m.dialogInput)-1]
			}

		default:
			// Add character to input if it's alphanumeric and within length
			r := []rune(msg.String())
			if len(r) == 1 && len(m.dialogInput) < len(m.dialogCode) && utils.IsAlphanumeric(r[0]) {
				m.dialogInput += string(r)
			}
		}
	}

	return m, nil
}

// View renders the UI
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	if m.showingDialog {
		return m.renderDialog()
	}

	var b strings.Builder

	// Title
	title := titleStyle.Render("dups: Interactive Duplicate Review")
	help := helpStyle.Render("[m=mark, d=delete, v=move, s=sort, q=quit, ↑↓=navigate, enter=expand/collapse]")
	b.WriteString(title + "\n")
	b.WriteString(help + "\n")
	b.WriteString(helpStyle.Render("sorted by "+m.sortMode.String()) + "\n\n")

	if len(m.root.Children) == 0 {
		b.WriteString(normalFileStyle.Render("No duplicates found.") + "\n")
	}

	// Render tree
	for i, node := range m.flatList {
		b.WriteString(m.renderNode(node, i == m.cursor))
		b.WriteString("\n")
	}

	// Footer with marked count
	if len(m.markedFiles) > 0 {
		b.WriteString(helpStyle.Render(fmt.Sprintf("\n%d file(s) marked", len(m.markedFiles))))
	}
	if len(m.removed) > 0 {
		b.WriteString(helpStyle.Render(fmt.Sprintf("\n%d file(s) deleted", len(m.removed))))
	}
	if len(m.moved) > 0 {
		b.WriteString(helpStyle.Render(fmt.Sprintf("\n%d file(s) moved to %s", len(m.moved), m.moveTarget)))
	}
	if m.status != "" {
		b.WriteString("\n" + markedFileStyle.Render(m.status))
	}

	return borderStyle.Render(b.String())
}

// renderNode renders a single tree node
func (m Model) renderNode(node *TreeNode, selected bool) string {
	indent := strings.Repeat("  ", node.Level)

	var prefix string
	if !node.IsFile {
		if node.Expanded {
			prefix = "▼ "
		} else {
			prefix = "▶ "
		}
	} else {
		prefix = "  "
	}

	text := indent + prefix + node.Text
	// Border and padding take four columns.
	if m.width > 8 {
		text = runewidth.Truncate(text, m.width-4, "…")
	}

	var style lipgloss.Style
	switch {
	case node.IsFile && node.Deleted:
		style = deletedFileStyle
	case node.IsFile && node.IsMarked:
		style = markedFileStyle
	case node.IsFile:
		style = normalFileStyle
	default:
		style = headerStyle
	}

	if selected {
		style = style.Inherit(selectedStyle)
	}

	return style.Render(text)
}

// renderDialog renders the delete confirmation dialog
func (m Model) renderDialog() string {
	var b strings.Builder

	dialogStyle := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(lipgloss.Color("196")).
		Padding(1, 2).
		Width(60)

	fmt.Fprintf(&b, "Type the confirmation code below to %s %d file(s):\n\n", m.dialogAction.verb(), len(m.markedFiles))
	if m.dialogAction == actionMove {
		fmt.Fprintf(&b, "Target: %s\n\n", m.moveTarget)
	}
	b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true).Render(m.dialogCode))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Code: %s\n", m.dialogInput)

	if m.dialogError != "" {
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render(m.dialogError))
	}

	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render("[enter=confirm, esc=cancel]"))

	return lipgloss.Place(
		80, 24,
		lipgloss.Center, lipgloss.Center,
		dialogStyle.Render(b.String()),
	)
}

// rebuildFlatList rebuilds the flat list of visible nodes for navigation
func (m *Model) rebuildFlatList() {
	m.flatList = nil
	m.flattenTree(m.root)

	// Ensure cursor is within bounds
	if m.cursor >= len(m.flatList) {
		m.cursor = len(m.flatList) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// flattenTree recursively flattens the tree into a list
func (m *Model) flattenTree(node *TreeNode) {
	if node == nil {
		return
	}

	// Don't add the root node itself
	if node.Level >= 0 {
		m.flatList = append(m.flatList, node)
	}

	if node.Expanded || node.Level < 0 {
		for _, child := range node.Children {
			m.flattenTree(child)
		}
	}
}

// sortGroups reorders the group headers. Ties keep scan order.
func (m *Model) sortGroups() {
	cmp := func(a, b *TreeNode) int { return a.order - b.order }
	switch m.sortMode {
	case sortByWasted:
		cmp = func(a, b *TreeNode) int {
			wa, wb := a.group.Wasted(), b.group.Wasted()
			switch {
			case wa > wb:
				return -1
			case wa < wb:
				return 1
			}
			return a.order - b.order
		}
	case sortByCount:
		cmp = func(a, b *TreeNode) int {
			if d := len(b.group.Files) - len(a.group.Files); d != 0 {
				return d
			}
			return a.order - b.order
		}
	}
	slices.SortStableFunc(m.root.Children, cmp)
}

// buildTree builds one header per group with its files as children, in
// the order the scan reported them.
func buildTree(res *dmap.ScanResult) *TreeNode {
	root := &TreeNode{
		Text:     "Root",
		Level:    -1,
		Expanded: true,
	}

	if res == nil {
		dlog.Dlogger.Debug("Scan result is nil")
		return root
	}

	for i := range res.Groups {
		g := &res.Groups[i]
		header := fmt.Sprintf("%s - %d Duplicates - (%s reclaimable)",
			g.Hash.Short(), len(g.Files), utils.DisplaySize(g.Wasted()))

		groupNode := &TreeNode{
			Text:     header,
			Level:    0,
			Expanded: true,
			Parent:   root,
			group:    g,
			order:    i,
		}

		for _, f := range g.Files {
			groupNode.Children = append(groupNode.Children, &TreeNode{
				Text:     f.FileName(),
				Level:    1,
				IsFile:   true,
				FilePath: f.FileName(),
				Parent:   groupNode,
			})
		}

		root.Children = append(root.Children, groupNode)
	}

	return root
}

// performAction deletes or moves the marked files group by group. A group
// whose selection would leave no copy is skipped entirely. The status line
// shows the last failure, the full list is kept in m.diag.
func (m *Model) performAction(a action) {
	for _, groupNode := range m.root.Children {
		selected := make(map[string]bool)
		for _, fileNode := range groupNode.Children {
			if fileNode.IsMarked && !fileNode.Deleted {
				selected[fileNode.FilePath] = true
			}
		}
		if len(selected) == 0 {
			continue
		}

		warned := m.diag.Len()
		done, err := m.apply(a, *groupNode.group, selected)
		if errors.Is(err, dmap.ErrLastCopy) {
			m.status = "Skipped a group: no copy would be left."
			dlog.Dlogger.Warnf("Interactive %s refused: %v", a.verb(), err)
			continue
		}
		if warnings := m.diag.Warnings(); len(warnings) > warned {
			m.status = warnings[len(warnings)-1].Error()
		}

		label := "[DELETED] "
		if a == actionMove {
			label = "[MOVED] "
		}
		for _, fileNode := range groupNode.Children {
			if !selected[fileNode.FilePath] {
				continue
			}
			delete(m.markedFiles, fileNode.FilePath)
			fileNode.IsMarked = false
			if done[fileNode.FilePath] {
				fileNode.Deleted = true
				fileNode.Text = label + filepath.Base(fileNode.FilePath)
			} else {
				fileNode.Text = "[ERROR] " + filepath.Base(fileNode.FilePath)
			}
		}
	}
}

// apply runs a on the selected members of g and returns the paths it
// succeeded on.
func (m *Model) apply(a action, g dmap.Group, selected map[string]bool) (map[string]bool, error) {
	done := make(map[string]bool)
	if a == actionMove {
		moved, err := dmap.MoveSelected(m.fs, g, selected, m.moveTarget, m.diag)
		for _, mv := range moved {
			done[mv.From] = true
		}
		m.moved = append(m.moved, moved...)
		return done, err
	}

	removed, err := dmap.RemoveSelected(m.fs, g, selected, m.diag)
	for _, p := range removed {
		done[p] = true
	}
	m.removed = append(m.removed, removed...)
	return done, err
}

// autoMarkFiles automatically marks all but the first file in each duplicate group for deletion
func autoMarkFiles(root *TreeNode, markedFiles map[string]*TreeNode) {
	if root == nil {
		return
	}

	for _, groupNode := range root.Children {
		if len(groupNode.Children) <= 1 {
			continue
		}
		for i, fileNode := range groupNode.Children {
			if i == 0 {
				continue
			}
			markedFiles[fileNode.FilePath] = fileNode
			fileNode.IsMarked = true
			dlog.Dlogger.Debugf("Auto-marked file for deletion: %s", fileNode.FilePath)
		}
	}
}

// GenConfirmationCode generates a random alphanumeric confirmation code
// user will need to type to confirm the deletion of files.
func GenConfirmationCode() string {

	const kAlnum = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	// #nosec G404 -- used intentionally. Not being used for crypto just UX.
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	length := r.Intn(4) + 5 // Random length between 5 and 8
	code := make([]byte, length)

	for i := range code {
		code[i] = kAlnum[r.Intn(len(kAlnum))]
	}

	return string(code)

}
