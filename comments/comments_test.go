package comments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInput() Input {
	return Input{PostID: "post-1", Name: "Ada", Email: "ada@example.com", Comment: "Great read"}
}

func TestValidateMessages(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		want []string
	}{
		{name: "all empty", in: Input{}, want: []string{"Name is required", "Email is required", "Comment is required"}},
		{name: "missing email", in: Input{Name: "Ada", Comment: "hi"}, want: []string{"Email is required"}},
		{name: "missing comment", in: Input{Name: "Ada", Email: "a@b.c"}, want: []string{"Comment is required"}},
		{name: "post id is not checked", in: Input{Name: "Ada", Email: "a@b.c", Comment: "hi"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fe := Validate(tt.in)
			if tt.want == nil {
				assert.Nil(t, fe)
				return
			}
			assert.Equal(t, tt.want, fe.Messages())
		})
	}
}

func TestValidateKeysUseFieldNames(t *testing.T) {
	fe := Validate(Input{Name: "Ada"})
	assert.Equal(t, FieldErrors{"email": "Email is required", "comment": "Comment is required"}, fe)
}

func TestStateShowForm(t *testing.T) {
	assert.True(t, Idle.ShowForm())
	assert.True(t, Submitting.ShowForm())
	assert.True(t, Failed.ShowForm())
	assert.False(t, Submitted.ShowForm())
	assert.Equal(t, "submitted", Submitted.String())
}

func TestFormEmptyFieldsSkipEndpoint(t *testing.T) {
	var calls int32
	f := NewForm(EndpointFunc(func(context.Context, Input) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}), zerolog.Nop())

	in := validInput()
	in.Email = ""
	fe, err := f.Submit(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, []string{"Email is required"}, fe.Messages())
	assert.Equal(t, Idle, f.State())
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestFormSuccessMovesToSubmitted(t *testing.T) {
	var got Input
	f := NewForm(EndpointFunc(func(_ context.Context, in Input) error {
		got = in
		return nil
	}), zerolog.Nop())

	fe, err := f.Submit(context.Background(), validInput())
	require.NoError(t, err)
	assert.Nil(t, fe)
	assert.Equal(t, Submitted, f.State())
	assert.Equal(t, validInput(), got)
	assert.False(t, f.State().ShowForm())
}

func TestFormFailureShowsFormAgain(t *testing.T) {
	boom := errors.New("boom")
	f := NewForm(EndpointFunc(func(context.Context, Input) error { return boom }), zerolog.Nop())

	fe, err := f.Submit(context.Background(), validInput())
	assert.Nil(t, fe)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, Failed, f.State())
	assert.True(t, f.State().ShowForm())

	f.reset()
	assert.Equal(t, Idle, f.State())
}

func TestFormRejectsConcurrentSubmit(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls int32
	f := NewForm(EndpointFunc(func(context.Context, Input) error {
		atomic.AddInt32(&calls, 1)
		close(entered)
		<-release
		return nil
	}), zerolog.Nop())

	done := make(chan error, 1)
	go func() {
		_, err := f.Submit(context.Background(), validInput())
		done <- err
	}()
	<-entered
	assert.Equal(t, Submitting, f.State())

	_, err := f.Submit(context.Background(), validInput())
	assert.ErrorIs(t, err, ErrInFlight)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, Submitted, f.State())
}

func TestHTTPEndpoint(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{name: "ok", status: http.StatusOK},
		{name: "created", status: http.StatusCreated},
		{name: "bad request", status: http.StatusBadRequest, wantErr: true},
		{name: "server error", status: http.StatusInternalServerError, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body map[string]string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				_ = json.NewDecoder(r.Body).Decode(&body)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			err := NewHTTPEndpoint(srv.URL).Submit(context.Background(), validInput())
			if tt.wantErr {
				var se *StatusError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, tt.status, se.StatusCode)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, map[string]string{
				"_id": "post-1", "name": "Ada", "email": "ada@example.com", "comment": "Great read",
			}, body)
		})
	}
}

func TestHTTPEndpointTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	f := NewForm(NewHTTPEndpoint(url), zerolog.Nop())
	_, err := f.Submit(context.Background(), validInput())
	assert.Error(t, err)
	assert.Equal(t, Failed, f.State())
}

func TestRegistryReusesForms(t *testing.T) {
	r := NewRegistry(EndpointFunc(func(context.Context, Input) error { return nil }), time.Hour, zerolog.Nop())
	defer r.Close()

	a := r.Form(Key("s1", "p1"))
	assert.Same(t, a, r.Form(Key("s1", "p1")))
	assert.NotSame(t, a, r.Form(Key("s2", "p1")))
	assert.Equal(t, 2, r.Len())

	_, ok := r.lookup(Key("s3", "p1"))
	assert.False(t, ok)
}

func TestRegistryEvictsIdleForms(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	r := NewRegistry(EndpointFunc(func(_ context.Context, in Input) error {
		if in.PostID == "busy" {
			close(entered)
			<-release
		}
		return nil
	}), time.Hour, zerolog.Nop())
	defer r.Close()

	r.Form(Key("s", "idle"))
	busy := r.Form(Key("s", "busy"))
	in := validInput()
	in.PostID = "busy"
	done := make(chan struct{})
	go func() {
		_, _ = busy.Submit(context.Background(), in)
		close(done)
	}()
	<-entered

	n := r.evict(time.Now().Add(2 * time.Hour))
	assert.Equal(t, 1, n)
	_, ok := r.lookup(Key("s", "busy"))
	assert.True(t, ok, "in-flight form must survive eviction")

	close(release)
	<-done
}

func TestRegistryNonPositiveIdle(t *testing.T) {
	for _, idle := range []time.Duration{0, -time.Minute} {
		r := NewRegistry(EndpointFunc(func(context.Context, Input) error { return nil }), idle, zerolog.Nop())
		assert.Equal(t, DefaultIdleTimeout, r.idle)
		r.Close()
	}
}
