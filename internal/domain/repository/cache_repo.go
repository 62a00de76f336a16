package repository

import (
	"time"
)

// CacheRepository определяет операции общего кеша, которые использует
// игровой слой: межузловое резервирование кодов и защита от двойной
// записи результатов (SetNX/Delete), кластерные счетчики (Increment/Get).
type CacheRepository interface {
	Get(key string) (string, error)
	Delete(key string) error
	Increment(key string) (int64, error)
	SetNX(key string, value interface{}, expiration time.Duration) (bool, error)
}
