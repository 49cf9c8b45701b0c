// Package objectstore предоставляет клиент HTTP-хранилища объектов для фотографий заказов и изображений моделей.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrNotConfigured возвращается, если адрес хранилища не задан.
var ErrNotConfigured = errors.New("object storage not configured")

// ThrottledError возвращается, если хранилище ответило 429.
type ThrottledError struct {
	RetryAfter time.Duration
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("object storage throttled, retry after %s", e.RetryAfter)
}

// Client инкапсулирует HTTP-взаимодействие с хранилищем объектов: PUT и DELETE по адресу {base}/{key}.
type Client struct {
	baseURL string
	http    *resty.Client
}

// NewClient создаёт клиент хранилища по указанному адресу.
func NewClient(baseURL string) *Client {
	base := strings.TrimRight(baseURL, "/")
	if base != "" && !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	return &Client{
		baseURL: base,
		http: resty.New().
			SetTimeout(10 * time.Second).
			SetRetryCount(2).
			SetRetryWaitTime(100 * time.Millisecond).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				return err != nil || r.StatusCode() >= http.StatusInternalServerError
			}),
	}
}

func (c *Client) configured() bool {
	return c != nil && c.baseURL != ""
}

// URLFor возвращает публичный адрес объекта.
func (c *Client) URLFor(key string) string {
	segments := strings.Split(strings.TrimLeft(key, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return c.baseURL + "/" + strings.Join(segments, "/")
}

// KeyFromURL извлекает ключ объекта из публичного адреса, выданного этим клиентом.
func (c *Client) KeyFromURL(raw string) (string, bool) {
	if !c.configured() || !strings.HasPrefix(raw, c.baseURL+"/") {
		return "", false
	}
	key, err := url.PathUnescape(strings.TrimPrefix(raw, c.baseURL+"/"))
	if err != nil || key == "" {
		return "", false
	}
	return key, true
}

// Upload сохраняет объект и возвращает его публичный адрес.
func (c *Client) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if !c.configured() {
		return "", ErrNotConfigured
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	target := c.URLFor(key)
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentType).
		SetBody(data).
		Put(target)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	if err := statusError(resp); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	return target, nil
}

// Delete удаляет объект. Отсутствующий объект считается удалённым.
func (c *Client) Delete(ctx context.Context, key string) error {
	if !c.configured() {
		return ErrNotConfigured
	}

	resp, err := c.http.R().SetContext(ctx).Delete(c.URLFor(key))
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}

	if resp.StatusCode() == http.StatusNotFound {
		return nil
	}
	if err := statusError(resp); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}

	return nil
}

func statusError(resp *resty.Response) error {
	if resp.StatusCode() == http.StatusTooManyRequests {
		retryAfter := time.Duration(0)
		if v := resp.Header().Get("Retry-After"); v != "" {
			if seconds, parseErr := strconv.Atoi(v); parseErr == nil {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return &ThrottledError{RetryAfter: retryAfter}
	}

	if !resp.IsSuccess() {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode())
	}

	return nil
}
