package websocket

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Время, которое разрешено писать сообщение клиенту.
	writeWait = 10 * time.Second

	// Время, которое разрешено клиенту читать следующее сообщение.
	// 30 секунд для быстрого обнаружения отключений
	pongWait = 30 * time.Second

	// Максимальный размер сообщения
	maxMessageSize = 512

	// Размер буфера по умолчанию для каналов отправки сообщений клиенту
	defaultClientBufferSize = 128
)

var (
	newline = []byte{'\n'}
	space   = []byte{' '}
)

// Limits задает настраиваемые лимиты одного соединения
type Limits struct {
	MaxMessageSize   int64
	WriteWait        time.Duration
	PongWait         time.Duration
	ClientSendBuffer int
}

// DefaultLimits возвращает лимиты по умолчанию
func DefaultLimits() Limits {
	return Limits{
		MaxMessageSize:   maxMessageSize,
		WriteWait:        writeWait,
		PongWait:         pongWait,
		ClientSendBuffer: defaultClientBufferSize,
	}
}

// normalize подставляет значения по умолчанию вместо нулевых полей
func (l Limits) normalize() Limits {
	def := DefaultLimits()
	if l.MaxMessageSize <= 0 {
		l.MaxMessageSize = def.MaxMessageSize
	}
	if l.WriteWait <= 0 {
		l.WriteWait = def.WriteWait
	}
	if l.PongWait <= 0 {
		l.PongWait = def.PongWait
	}
	if l.ClientSendBuffer <= 0 {
		l.ClientSendBuffer = def.ClientSendBuffer
	}
	return l
}

// pingPeriod должен быть меньше PongWait, иначе соединение закроется
// раньше отправки очередного ping
func (l Limits) pingPeriod() time.Duration {
	return (l.PongWait * 9) / 10
}

// Client является посредником между WebSocket соединением и оркестратором игр.
type Client struct {
	// ID пользователя (из тикета подключения)
	UserID uint

	// Отображаемое имя пользователя (из тикета подключения)
	Username string

	// Уникальный ID для каждого соединения
	ConnectionID string

	// WebSocket соединение
	conn *websocket.Conn

	// Буферизованный канал для исходящих сообщений
	send chan []byte

	// Флаг, указывающий что канал send закрыт (для предотвращения panic)
	sendClosed atomic.Bool

	// Лимиты соединения
	limits Limits

	// Коллбек завершения соединения; вызывается ровно один раз
	onClose   func(*Client)
	closeOnce sync.Once
}

// NewClient создает нового клиента с лимитами по умолчанию
func NewClient(conn *websocket.Conn, userID uint, username string) *Client {
	return NewClientWithLimits(conn, userID, username, DefaultLimits())
}

// NewClientWithLimits создает нового клиента с заданными лимитами
func NewClientWithLimits(conn *websocket.Conn, userID uint, username string, limits Limits) *Client {
	limits = limits.normalize()
	return &Client{
		UserID:       userID,
		Username:     username,
		ConnectionID: uuid.New().String(),
		conn:         conn,
		send:         make(chan []byte, limits.ClientSendBuffer),
		limits:       limits,
	}
}

// ID возвращает уникальный идентификатор соединения.
// Реализует game.Conn.
func (c *Client) ID() string {
	return c.ConnectionID
}

// SendJSON сериализует значение и ставит его в очередь отправки клиенту.
// Реализует game.Conn. Порядок сообщений сохраняется: все записи идут
// через единственную горутину writePump.
func (c *Client) SendJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message for client %s: %w", c.ConnectionID, err)
	}
	if !c.Send(data) {
		return fmt.Errorf("send buffer full or closed for client %s", c.ConnectionID)
	}
	return nil
}

// Send ставит байтовое сообщение в очередь отправки без блокировки.
// Возвращает false, если буфер переполнен или канал уже закрыт.
func (c *Client) Send(message []byte) bool {
	if c.sendClosed.Load() {
		return false
	}
	select {
	case c.send <- message:
		return true
	default:
		log.Printf("[Client %d][Conn %s] Переполнение буфера отправки, сообщение отброшено", c.UserID, c.ConnectionID)
		return false
	}
}

// CloseSend безопасно закрывает канал send (только один раз).
// Возвращает true, если канал был закрыт этим вызовом.
func (c *Client) CloseSend() bool {
	if c.sendClosed.CompareAndSwap(false, true) {
		close(c.send)
		return true
	}
	return false
}

// StartPumps запускает горутины для чтения и записи сообщений.
// messageHandler вызывается для каждого входящего сообщения;
// onClose вызывается ровно один раз при завершении соединения.
func (c *Client) StartPumps(messageHandler func(message []byte, client *Client) error, onClose func(*Client)) {
	c.onClose = onClose
	go c.writePump()
	go c.readPump(messageHandler)
}

// readPump читает сообщения от клиента и передает их обработчику
func (c *Client) readPump(messageHandler func(message []byte, client *Client) error) {
	defer func() {
		log.Printf("WebSocket Client Read Pump STOPPED for UserID: %d, ConnID: %s", c.UserID, c.ConnectionID)
		c.fireOnClose()
		c.conn.Close()
	}()

	// Настройка чтения сообщений
	c.conn.SetReadLimit(c.limits.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.limits.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.limits.PongWait))
		return nil
	})

	log.Printf("WebSocket Client Read Pump STARTED for UserID: %d, ConnID: %s", c.UserID, c.ConnectionID)

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("WebSocket Client Connection Closed Normally (UserID: %d, ConnID: %s): %v", c.UserID, c.ConnectionID, err)
			} else {
				log.Printf("WebSocket Client Read Error (UserID: %d, ConnID: %s): %v", c.UserID, c.ConnectionID, err)
			}
			break // Выходим из цикла при любой ошибке чтения
		}

		// Безопасный вызов обработчика с recover
		if handlerErr := safeHandleMessage(message, c, messageHandler); handlerErr != nil {
			// Если обработчик вернул ошибку, считаем ее фатальной для соединения
			log.Printf("WebSocket Client Handler Error (UserID: %d, ConnID: %s): %v. Closing connection.", c.UserID, c.ConnectionID, handlerErr)
			break
		}
	}
}

// fireOnClose вызывает onClose ровно один раз
func (c *Client) fireOnClose() {
	c.closeOnce.Do(func() {
		if c.onClose != nil {
			c.onClose(c)
		}
	})
}

// safeHandleMessage - обертка для вызова обработчика с recover.
// Возвращает ошибку, если обработчик вернул ошибку.
func safeHandleMessage(message []byte, client *Client, messageHandler func(message []byte, client *Client) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("PANIC recovered in message handler for UserID: %d, ConnID: %s. Panic: %v\nStack trace:\n%s",
				client.UserID, client.ConnectionID, r, string(debug.Stack()))
			// Паника считается фатальной ошибкой для обработчика
			err = fmt.Errorf("panic recovered: %v", r)
		}
	}()
	message = bytes.TrimSpace(bytes.Replace(message, newline, space, -1))
	if messageHandler != nil {
		err = messageHandler(message, client)
	} else {
		log.Printf("Warning: No message handler registered for client %d", client.UserID)
	}
	return err
}

// writePump отправляет сообщения клиенту из канала send
func (c *Client) writePump() {
	ticker := time.NewTicker(c.limits.pingPeriod())
	defer func() {
		ticker.Stop()
		// Закрываем соединение при завершении writePump
		c.conn.Close()
		log.Printf("WebSocket Client Write Pump STOPPED for UserID: %d, ConnID: %s", c.UserID, c.ConnectionID)
	}()

	log.Printf("WebSocket Client Write Pump STARTED for UserID: %d, ConnID: %s", c.UserID, c.ConnectionID)

	for {
		select {
		case message, ok := <-c.send:
			// Устанавливаем таймаут для записи
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.limits.WriteWait)); err != nil {
				log.Printf("WebSocket Client SetWriteDeadline Error (UserID: %d, ConnID: %s): %v", c.UserID, c.ConnectionID, err)
				return
			}

			if !ok {
				// Канал send закрыт
				log.Printf("WebSocket Client Send Channel Closed (UserID: %d, ConnID: %s)", c.UserID, c.ConnectionID)
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				log.Printf("WebSocket Client NextWriter Error (UserID: %d, ConnID: %s): %v", c.UserID, c.ConnectionID, err)
				return
			}

			if _, err := w.Write(message); err != nil {
				log.Printf("WebSocket Client Write Error (UserID: %d, ConnID: %s): %v", c.UserID, c.ConnectionID, err)
			}

			// Закрываем writer, чтобы отправить сообщение
			if err := w.Close(); err != nil {
				log.Printf("WebSocket Client Writer Close Error (UserID: %d, ConnID: %s): %v", c.UserID, c.ConnectionID, err)
				return
			}

		case <-ticker.C:
			// Отправляем ping клиенту
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.limits.WriteWait)); err != nil {
				log.Printf("WebSocket Client SetWriteDeadline (Ping) Error (UserID: %d, ConnID: %s): %v", c.UserID, c.ConnectionID, err)
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("WebSocket Client Ping Error (UserID: %d, ConnID: %s): %v", c.UserID, c.ConnectionID, err)
				return
			}
		}
	}
}
