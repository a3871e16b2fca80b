package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hay-kot/threadline/internal/cache"
	"github.com/hay-kot/threadline/internal/core/messaging"
	"github.com/hay-kot/threadline/internal/threadline"
)

const requestTimeout = 10 * time.Second

// threadsLoadedMsg is sent when the thread list is fetched.
type threadsLoadedMsg struct {
	threads []messaging.Thread
	err     error
}

// threadOpenedMsg is sent when a thread's first page is loaded and its
// subscription started.
type threadOpenedMsg struct {
	threadID int64
	messages cache.Messages
	err      error
}

// messageSentMsg is sent when a send completes.
type messageSentMsg struct {
	err error
}

// threadCreatedMsg is sent when a new thread is created.
type threadCreatedMsg struct {
	thread messaging.Thread
	err    error
}

// activityLoadedMsg carries the activity log of one thread.
type activityLoadedMsg struct {
	threadID   int64
	activities []messaging.Activity
	err        error
}

// updateMsg wraps one update from the service.
type updateMsg struct {
	update threadline.Update
}

// waitForUpdate blocks on the service's update channel. The model re-issues
// it after every update, so exactly one is outstanding.
func waitForUpdate(ctx context.Context, svc *threadline.Service) tea.Cmd {
	return func() tea.Msg {
		select {
		case u := <-svc.Updates():
			return updateMsg{update: u}
		case <-ctx.Done():
			return nil
		}
	}
}

func loadThreads(ctx context.Context, svc *threadline.Service) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()

		threads, err := svc.RefreshThreads(ctx)
		return threadsLoadedMsg{threads: threads, err: err}
	}
}

func openThread(ctx context.Context, svc *threadline.Service, threadID int64) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()

		msgs, err := svc.Open(ctx, threadID)
		return threadOpenedMsg{threadID: threadID, messages: msgs, err: err}
	}
}

func sendMessage(ctx context.Context, svc *threadline.Service, threadID int64, content string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()

		_, err := svc.Send(ctx, threadID, content)
		return messageSentMsg{err: err}
	}
}

func createThread(ctx context.Context, svc *threadline.Service, result NewThreadFormResult) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()

		th, err := svc.CreateThread(ctx, result.Usernames, result.Name)
		return threadCreatedMsg{thread: th, err: err}
	}
}

// activityLimit caps the events loaded into the activity view.
const activityLimit = 200

func loadActivity(svc *threadline.Service, threadID int64) tea.Cmd {
	return func() tea.Msg {
		activities, err := svc.Activity(threadID, activityLimit)
		return activityLoadedMsg{threadID: threadID, activities: activities, err: err}
	}
}
