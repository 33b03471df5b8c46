package threatapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout — таймаут запроса, если другой не задан.
const DefaultTimeout = 10 * time.Second

// Doer — минимальный контракт HTTP транспорта (*http.Client его реализует).
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Response — ответ, полностью вычитанный в пределах дедлайна.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Fetch выполняет запрос с собственным дедлайном.
// Если ответ (включая тело) не пришел за timeout, запрос отменяется и возвращается *TimeoutError.
// Отмена родительского ctx возвращается как есть, прочие транспортные сбои — *NetworkError.
// Таймер дедлайна освобождается на любом пути выхода.
func Fetch(ctx context.Context, doer Doer, req *http.Request, timeout time.Duration) (*Response, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	tCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := doer.Do(req.WithContext(tCtx))
	if err != nil {
		return nil, classifyTransportError(ctx, tCtx, timeout, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportError(ctx, tCtx, timeout, err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

func classifyTransportError(parent, tCtx context.Context, timeout time.Duration, err error) error {
	// Родителя отменили раньше нашего дедлайна - это не таймаут, а уход экрана/остановка.
	if pErr := parent.Err(); pErr != nil {
		return pErr
	}
	if errors.Is(tCtx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Timeout: timeout}
	}
	return &NetworkError{Err: err}
}
