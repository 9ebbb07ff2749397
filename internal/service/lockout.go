package service

// shouldLock — политика блокировки учётной записи: чистая функция над
// счётчиком неудачных входов. Порог приходит из конфигурации; нулевой
// или отрицательный порог отключает блокировку.
func shouldLock(failedAttempts, threshold int) bool {
	if threshold <= 0 {
		return false
	}

	return failedAttempts >= threshold
}
