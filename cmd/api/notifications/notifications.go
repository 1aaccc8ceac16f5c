package notifications

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/book-intake/cmd/api/book"
)

// Ntfy publishes messages to an ntfy topic. baseURL is the topic URL, e.g. https://ntfy.sh/books.
type Ntfy struct {
	baseURL string
	enabled bool
	client  *http.Client
}

func NewNtfy(enableNotifications bool, notificationsBaseURL string, client *http.Client) *Ntfy {
	if client == nil {
		client = &http.Client{}
	}
	return &Ntfy{
		baseURL: strings.TrimSuffix(notificationsBaseURL, "/"),
		enabled: enableNotifications,
		client:  client,
	}
}

func bookCreatedMessage(title, author string) string {
	return fmt.Sprintf("New book created: Title: %s Author: %s", title, author)
}

/* Publishes a "book created" message. It is a no-op when notifications are disabled. */
func (ntf *Ntfy) BookCreated(ctx context.Context, title, author string) error {
	if !ntf.enabled {
		return nil
	}

	message := bookCreatedMessage(title, author)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ntf.baseURL, strings.NewReader(message))
	if err != nil {
		return fmt.Errorf("error delivering message (%s) to topic (%s): %w", message, ntf.baseURL, err)
	}
	req.Header.Set("Title", "New book created")

	resp, err := ntf.client.Do(req)
	if err != nil {
		return fmt.Errorf("error delivering message (%s) to topic (%s): %w", message, ntf.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return book.NewErrNotificationFailed(resp.StatusCode)
	}
	return nil
}
