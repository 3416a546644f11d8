package github

import (
	"context"
	"errors"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v60/github"
	jsoniter "github.com/json-iterator/go"
	"github.com/theapemachine/scenes/pkg/tools"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

/*
Client wraps the GitHub REST API for the two read-only services scenes
ships with: listing pull requests and reading a file.
*/
type Client struct {
	api *gh.Client
}

type ClientOption func(*Client)

/*
New creates a client. An empty token gives unauthenticated, rate-limited
access.
*/
func New(token string, options ...ClientOption) *Client {
	api := gh.NewClient(nil)

	if token != "" {
		api = api.WithAuthToken(token)
	}

	client := &Client{api: api}

	for _, option := range options {
		option(client)
	}

	return client
}

type PullRequest struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	State  string `json:"state"`
	Author string `json:"author"`
	URL    string `json:"url"`
}

/*
PullRequests lists the pull requests of owner/repo. state is open,
closed or all, open when empty.
*/
func (client *Client) PullRequests(ctx context.Context, repo, state string) ([]PullRequest, error) {
	owner, name, err := split(repo)

	if err != nil {
		return nil, err
	}

	if state == "" {
		state = "open"
	}

	pulls, _, err := client.api.PullRequests.List(ctx, owner, name, &gh.PullRequestListOptions{State: state})

	if err != nil {
		return nil, err
	}

	out := make([]PullRequest, 0, len(pulls))

	for _, pull := range pulls {
		out = append(out, PullRequest{
			Number: pull.GetNumber(),
			Title:  pull.GetTitle(),
			State:  pull.GetState(),
			Author: pull.GetUser().GetLogin(),
			URL:    pull.GetHTMLURL(),
		})
	}

	return out, nil
}

/*
File returns the decoded content of path in owner/repo at ref, the
default branch when ref is empty.
*/
func (client *Client) File(ctx context.Context, repo, path, ref string) (string, error) {
	owner, name, err := split(repo)

	if err != nil {
		return "", err
	}

	var opts *gh.RepositoryContentGetOptions

	if ref != "" {
		opts = &gh.RepositoryContentGetOptions{Ref: ref}
	}

	file, _, _, err := client.api.Repositories.GetContents(ctx, owner, name, path, opts)

	if err != nil {
		return "", err
	}

	if file == nil {
		return "", errors.New("path is a directory")
	}

	return file.GetContent()
}

/*
PullRequestsService takes repo and an optional state.
*/
func (client *Client) PullRequestsService() tools.ServiceFunc {
	return func(ctx context.Context, arguments tools.Arguments) (string, error) {
		pulls, err := client.PullRequests(ctx, arguments["repo"].String(), arguments["state"].String())

		if err != nil {
			return "", err
		}

		buf, err := json.Marshal(pulls)
		return string(buf), err
	}
}

/*
FileService takes repo, path and an optional ref.
*/
func (client *Client) FileService() tools.ServiceFunc {
	return func(ctx context.Context, arguments tools.Arguments) (string, error) {
		return client.File(ctx, arguments["repo"].String(), arguments["path"].String(), arguments["ref"].String())
	}
}

func split(repo string) (string, string, error) {
	owner, name, ok := strings.Cut(repo, "/")

	if !ok || owner == "" || name == "" {
		return "", "", errors.New("repo must look like owner/name")
	}

	return owner, name, nil
}

/*
WithBaseURL points the client at another API root, such as GitHub
Enterprise or a test server.
*/
func WithBaseURL(base string) ClientOption {
	return func(client *Client) {
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}

		if u, err := url.Parse(base); err == nil {
			client.api.BaseURL = u
		}
	}
}
