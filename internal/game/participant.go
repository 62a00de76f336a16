package game

// Conn определяет минимальный контракт соединения участника.
// Реализуется websocket.Client; в тестах подменяется фейком.
type Conn interface {
	// ID возвращает уникальный идентификатор соединения
	ID() string

	// SendJSON ставит сообщение в очередь отправки клиенту
	SendJSON(v interface{}) error
}

// AnswerRecord — запись журнала ответов участника.
// AnswerID равен nil для пропущенного ответа (таймаут на стороне клиента).
type AnswerRecord struct {
	QuestionID uint
	AnswerID   *uint
	IsCorrect  bool
	Points     int
}

// Participant — участник комнаты. Вся мутация происходит внутри цикла
// комнаты, поэтому структура не требует собственной синхронизации.
type Participant struct {
	UserID       uint
	Username     string
	Conn         Conn
	Score        int
	CorrectCount int
	Ledger       []AnswerRecord // append-only, не более одной записи на вопрос
}

// HasAnswered проверяет, есть ли у участника запись для вопроса
func (p *Participant) HasAnswered(questionID uint) bool {
	for i := range p.Ledger {
		if p.Ledger[i].QuestionID == questionID {
			return true
		}
	}
	return false
}

// recordFor возвращает запись журнала для вопроса или nil
func (p *Participant) recordFor(questionID uint) *AnswerRecord {
	for i := range p.Ledger {
		if p.Ledger[i].QuestionID == questionID {
			return &p.Ledger[i]
		}
	}
	return nil
}
