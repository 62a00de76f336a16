package websocket

import (
	"encoding/json"
	"fmt"
	"log"
)

// Event представляет структуру WebSocket-сообщения
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Manager обрабатывает WebSocket сообщения: разбирает входящий конверт
// {type, data} и вызывает зарегистрированный обработчик по типу.
type Manager struct {
	messageHandler    map[string]func(data json.RawMessage, client *Client) error
	disconnectHandler func(client *Client)
}

// NewManager создает новый менеджер WebSocket
func NewManager() *Manager {
	return &Manager{
		messageHandler: make(map[string]func(data json.RawMessage, client *Client) error),
	}
}

// RegisterHandler регистрирует обработчик для определенного типа сообщений
func (m *Manager) RegisterHandler(eventType string, handler func(data json.RawMessage, client *Client) error) {
	m.messageHandler[eventType] = handler
	log.Printf("[WebSocketManager] Зарегистрирован обработчик для сообщений типа: %s", eventType)
}

// OnDisconnect регистрирует обработчик обрыва соединения
func (m *Manager) OnDisconnect(handler func(client *Client)) {
	m.disconnectHandler = handler
}

// HandleMessage обрабатывает входящее сообщение от клиента.
// Возвращает error, если обработка не удалась и соединение нужно закрыть.
func (m *Manager) HandleMessage(message []byte, client *Client) error {
	var event Event
	if err := json.Unmarshal(message, &event); err != nil {
		log.Printf("Failed to unmarshal message from %d: %v, Message: %s", client.UserID, err, string(message))
		m.SendErrorToClient(client, "invalid_message_format", "Invalid JSON format")
		return err // Ошибка парсинга - закрываем соединение
	}

	handler, ok := m.messageHandler[event.Type]
	if !ok {
		log.Printf("No handler registered for message type '%s' from client %d", event.Type, client.UserID)
		m.SendErrorToClient(client, "unknown_message_type", fmt.Sprintf("Unknown message type: %s", event.Type))
		return nil // Неизвестный тип - не закрываем соединение
	}

	// Вызываем зарегистрированный обработчик
	rawMessage, _ := json.Marshal(event.Data)
	if err := handler(rawMessage, client); err != nil {
		// Если обработчик вернул ошибку, передаем ее дальше для закрытия соединения
		log.Printf("Handler for type '%s' returned error for client %d: %v", event.Type, client.UserID, err)
		return err
	}

	return nil // Обработка успешна или ошибка не фатальна
}

// HandleDisconnect вызывается при завершении соединения клиента
func (m *Manager) HandleDisconnect(client *Client) {
	if m.disconnectHandler != nil {
		m.disconnectHandler(client)
	}
}

// SendErrorToClient отправляет стандартизированное сообщение об ошибке клиенту.
// Этот метод НЕ закрывает соединение.
func (m *Manager) SendErrorToClient(client *Client, code string, message string) {
	errorEvent := Event{
		Type: "error",
		Data: map[string]string{
			"code":    code,
			"message": message,
		},
	}
	if err := client.SendJSON(errorEvent); err != nil {
		log.Printf("ERROR sending error to client %d: %v", client.UserID, err)
	}
}

// SendEventToClient отправляет событие конкретному клиенту
func (m *Manager) SendEventToClient(client *Client, eventType string, data interface{}) error {
	return client.SendJSON(Event{
		Type: eventType,
		Data: data,
	})
}
