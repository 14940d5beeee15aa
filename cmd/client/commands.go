package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"NeuralClient/internal/client"
	"NeuralClient/internal/domain"
	"NeuralClient/internal/feed"
)

var errQuit = errors.New("quit")

const helpText = `commands:
  login <code> | login <name> <password>   register <name> <password>   logout
  view <login|feed|messages|friends|music|profile|user_profile>
  chat global | chat <user-id>   say <text>   unsay <message-id>   messages
  requests   accept <request-id>   decline <request-id>
  befriend <handle>   unfriend <handle>   search <query>
  feed   post <text>   like <post-id>   comment <post-id> <text>
  profile <handle>   bio <text>   verify <handle>
  tracks   favourites   play <track-id>   pause   next   prev   volume <0..1>   love <track-id>
  status   help   quit`

// commandLoop reads one command per line from in until EOF, quit or ctx
// ends.
func commandLoop(ctx context.Context, app *client.App, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Fprintln(out, `type "help" for commands`)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			err := execute(ctx, app, line, out)
			if errors.Is(err, errQuit) {
				return nil
			}
			if err == nil {
				continue
			}
			// Most failures already surfaced as a toast.
			msg := domain.UserMessage(err)
			if t, ok := app.Toasts.Current(); ok && t.Message == msg {
				continue
			}
			fmt.Fprintf(out, "error: %s\n", msg)
		}
	}
}

// splitCommand returns the verb and the rest of the line, trimmed.
func splitCommand(line string) (string, string) {
	line = strings.TrimSpace(line)
	verb, rest, _ := strings.Cut(line, " ")
	return strings.ToLower(verb), strings.TrimSpace(rest)
}

func execute(ctx context.Context, app *client.App, line string, out io.Writer) error {
	verb, arg := splitCommand(line)
	switch verb {
	case "":
		return nil
	case "help":
		fmt.Fprintln(out, helpText)
		return nil
	case "quit", "exit":
		return errQuit

	case "login":
		first, second, hasTwo := strings.Cut(arg, " ")
		if hasTwo {
			return app.Login(ctx, domain.Credentials{Login: first, Password: strings.TrimSpace(second)})
		}
		return app.Login(ctx, domain.Credentials{Code: first})
	case "register":
		name, password, _ := strings.Cut(arg, " ")
		reg, err := app.Register(ctx, name, strings.TrimSpace(password))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "registered %s, secret code: %s\n", reg.Handle, reg.SecretCode)
		return nil
	case "logout":
		app.Logout(ctx)
		return nil

	case "view":
		return app.Navigate(ctx, domain.ViewID(arg))
	case "chat":
		if arg == "" || arg == "global" {
			app.SelectChat(domain.Global())
			return app.Navigate(ctx, domain.ViewMessages)
		}
		return app.StartChat(ctx, arg)
	case "say":
		return app.SendMessage(ctx, arg)
	case "unsay":
		return app.DeleteMessage(ctx, arg)
	case "messages":
		st := app.Session.Snapshot()
		fmt.Fprintf(out, "[%s]\n", st.ConversationScope)
		for _, m := range st.Conversation {
			fmt.Fprintf(out, "%s  %s: %s\n", m.ID, m.SenderName, m.Text)
		}
		return nil

	case "requests":
		for _, r := range app.Session.Snapshot().FriendRequests {
			fmt.Fprintf(out, "%s  %s (%s)\n", r.RequestID, r.SenderName, r.SenderHandle)
		}
		return nil
	case "accept":
		return app.RespondToRequest(ctx, arg, domain.RequestAccept)
	case "decline":
		return app.RespondToRequest(ctx, arg, domain.RequestReject)
	case "befriend":
		status, err := app.SendFriendRequest(ctx, arg)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "friend status: %s\n", status)
		return nil
	case "unfriend":
		return app.RemoveFriend(ctx, arg)
	case "search":
		users, err := app.Search(ctx, arg)
		if err != nil {
			return err
		}
		for _, u := range users {
			fmt.Fprintf(out, "%s  %s\n", u.Handle, u.Name)
		}
		return nil

	case "feed":
		for _, p := range app.Feed.Posts() {
			fmt.Fprintf(out, "%s  %s: %s  [%d likes, %d comments]\n", p.ID, p.Author.Handle, p.Content, p.Likes, len(p.Comments))
		}
		return nil
	case "post":
		_, err := app.Publish(ctx, domain.NewPost{Content: arg})
		return err
	case "like":
		p, err := app.LikePost(ctx, boardFor(app), arg)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: %d likes\n", p.ID, p.Likes)
		return nil
	case "comment":
		postID, text, _ := strings.Cut(arg, " ")
		_, err := app.Comment(ctx, boardFor(app), postID, strings.TrimSpace(text))
		return err

	case "profile":
		return app.OpenProfile(ctx, arg)
	case "bio":
		_, err := app.UpdateProfile(ctx, domain.ProfileUpdate{Bio: arg})
		return err
	case "verify":
		verified, err := app.ToggleVerify(ctx, arg)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s verified: %t\n", arg, verified)
		return nil

	case "tracks":
		printTracks(out, app.Playback.Playlist())
		return nil
	case "favourites":
		printTracks(out, app.Playback.Favourites())
		return nil
	case "play":
		if arg == "" {
			return app.Playback.TogglePlay(ctx)
		}
		return app.PlayTrack(ctx, arg)
	case "pause":
		return app.Playback.TogglePlay(ctx)
	case "next":
		return app.Playback.Next(ctx)
	case "prev":
		return app.Playback.Previous(ctx)
	case "volume":
		v, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return domain.NewValidationError(map[string]string{"volume": "must be a number"})
		}
		return app.Playback.SetVolume(ctx, v)
	case "love":
		_, err := app.LikeTrack(ctx, arg)
		return err

	case "status":
		printStatus(ctx, out, app)
		return nil
	}
	return fmt.Errorf("unknown command %q", verb)
}

// boardFor returns the post list of the current view.
func boardFor(app *client.App) *feed.Board {
	switch app.Session.Snapshot().ActiveView {
	case domain.ViewProfile:
		return app.Profile
	case domain.ViewUserProfile:
		return app.UserProfile
	}
	return app.Feed
}

func printTracks(out io.Writer, tracks []domain.Track) {
	for _, t := range tracks {
		mark := " "
		if t.IsLiked {
			mark = "*"
		}
		fmt.Fprintf(out, "%s %s  %s - %s\n", mark, t.ID, t.Artist, t.Title)
	}
}

func printStatus(ctx context.Context, out io.Writer, app *client.App) {
	st := app.Session.Snapshot()
	if st.Identity == nil {
		fmt.Fprintln(out, "signed out")
	} else {
		fmt.Fprintf(out, "signed in as %s (%s)\n", st.Identity.Name, st.Identity.Handle)
	}
	fmt.Fprintf(out, "view: %s  chat: %s  requests: %d\n", st.ActiveView, st.ActiveChatScope, len(st.FriendRequests))

	ps := app.Playback.State()
	track := "-"
	if ps.Current != nil {
		track = ps.Current.Title
	}
	fmt.Fprintf(out, "playback: %s  track: %s  volume: %.2f\n", ps.Status, track, ps.Volume)
	if ts, ok := app.CredentialSavedAt(ctx); ok {
		fmt.Fprintf(out, "credential saved: %s\n", ts.Format(time.RFC3339))
	}
	if t, ok := app.Toasts.Current(); ok {
		fmt.Fprintf(out, "toast: %s\n", t.Message)
	}
}
