package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"sneakernet/internal/model"
	"sneakernet/internal/utils/log"

	"github.com/gdamore/tcell/v2"
	"github.com/gorilla/websocket"
	"github.com/rivo/tview"
	"go.uber.org/zap"
)

type (
	// App is a terminal chat with one contact, driven through a running daemon.
	App struct {
		app     *tview.Application
		chatbox *tview.TextView
		input   *tview.InputField

		host   string
		client *http.Client

		contact *model.Contact
		label   string

		mu   sync.Mutex
		conn *websocket.Conn
	}
)

func NewApp(host string) *App {
	return &App{
		app:    tview.NewApplication(),
		host:   host,
		client: &http.Client{},
	}
}

// Run opens the chat with contactPubkey. With a remoteNodeID it dials the
// contact, otherwise it waits for the contact to dial in. Blocks until the UI
// exits.
func (c *App) Run(ctx context.Context, contactPubkey, remoteNodeID string) error {
	contact, err := c.getContact(ctx, contactPubkey)
	if err != nil {
		return err
	}
	c.contact = contact
	c.label = displayName(contact)

	if err := c.ensureConnected(ctx, remoteNodeID); err != nil {
		return err
	}

	conn, err := c.initWebsocket(ctx, contact.NostrPubkey)
	if err != nil {
		return fmt.Errorf("open chat socket: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	return c.renderUI()
}

func (c *App) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.app.Stop()
}

func (c *App) ensureConnected(ctx context.Context, remoteNodeID string) error {
	status, err := c.nodeStatus(ctx)
	if err != nil {
		return err
	}
	for _, k := range status.ConnectedContacts {
		if k == c.contact.NostrPubkey {
			return nil
		}
	}

	nodeID, err := c.startNode(ctx, c.contact.NostrPubkey)
	if err != nil {
		return fmt.Errorf("start node: %w", err)
	}

	if remoteNodeID != "" {
		fmt.Printf("Connecting to %s ...\n", c.label)
		return c.connect(ctx, c.contact.NostrPubkey, remoteNodeID)
	}

	fmt.Printf("Waiting for %s to connect. Your node ID: %s\n", c.label, nodeID)
	remote, err := c.accept(ctx, c.contact.NostrPubkey)
	if err != nil {
		return err
	}
	log.Info("contact connected", zap.String("node_id", remote))
	return nil
}

// blocking function
func (c *App) renderUI() error {
	c.chatbox = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	c.chatbox.SetBorder(true).SetTitle(fmt.Sprintf(" Chat with %s ", c.label))

	c.input = tview.NewInputField().
		SetLabel("Message: ").
		SetFieldWidth(0)
	c.input.SetBorder(true).SetTitle(" New Message ")

	c.input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		text := c.input.GetText()
		if text == "" {
			return
		}
		c.input.SetText("")

		go func(msg string) {
			if err := c.SendMessage(msg); err != nil {
				c.showError(err)
			}
		}(text)
	})

	layout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(c.chatbox, 0, 1, false).
		AddItem(c.input, 3, 0, true)

	go c.listenOnWebsocket()
	return c.app.SetRoot(layout, true).SetFocus(c.input).Run()
}

func (c *App) listenOnWebsocket() {
	for {
		var ev wsEvent
		if err := c.conn.ReadJSON(&ev); err != nil {
			log.Debug("chat web socket closed", zap.Error(err))
			if !errors.Is(err, websocket.ErrCloseSent) {
				c.showError(errors.New("connection to daemon closed"))
			}
			return
		}

		switch ev.Type {
		case "sent":
			c.print(fmt.Sprintf("[yellow]You:[-] %s", tview.Escape(ev.Message.Content)))
		case "received":
			c.print(fmt.Sprintf("[green]%s:[-] %s", tview.Escape(c.label), tview.Escape(ev.Message.Content)))
		case "error":
			c.showError(errors.New(ev.Error))
		}
	}
}

// SendMessage hands msg to the daemon. It is printed once the daemon
// confirms the send.
func (c *App) SendMessage(msg string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return errors.New("not connected")
	}
	return c.conn.WriteMessage(websocket.TextMessage, []byte(msg))
}

func (c *App) print(line string) {
	c.app.QueueUpdateDraw(func() {
		fmt.Fprintln(c.chatbox, line)
		c.chatbox.ScrollToEnd()
	})
}

func (c *App) showError(err error) {
	log.Error("chat failed", zap.Error(err))
	c.print(fmt.Sprintf("[red]error:[-] %s", tview.Escape(err.Error())))
}

func displayName(contact *model.Contact) string {
	if contact.Nickname != nil && *contact.Nickname != "" {
		return *contact.Nickname
	}
	return contact.NostrPubkey[:8]
}
