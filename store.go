package pubfront

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/eringen/pubfront/content"
	"github.com/eringen/pubfront/portabletext"
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const defaultImagePrefix = "/assets/images/"

// Store is a content backend on a local SQLite database. It holds the same
// documents as the hosted store (authors, posts, comments) and serves image
// assets from a directory on disk.
type Store struct {
	db          *sql.DB
	imagePrefix string
}

// AuthorDoc is an author as stored.
type AuthorDoc struct {
	ID    string
	Name  string
	Image content.Image
}

// PostDoc is a post as stored; the author is a reference.
type PostDoc struct {
	ID          string
	Title       string
	Description string
	Slug        string
	MainImage   content.Image
	Body        portabletext.Blocks
	AuthorID    string
	CreatedAt   time.Time
}

// storePragmas is applied by the driver to every new pool connection.
const storePragmas = "?_pragma=busy_timeout(5000)" +
	"&_pragma=journal_mode(WAL)" +
	"&_pragma=synchronous(NORMAL)" +
	"&_pragma=cache_size(-8000)"

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and creates the schema.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path+storePragmas)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db, imagePrefix: defaultImagePrefix}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS authors (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    image_ref TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS posts (
    id TEXT PRIMARY KEY,
    slug TEXT NOT NULL UNIQUE,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    main_image_ref TEXT NOT NULL DEFAULT '',
    main_image_alt TEXT NOT NULL DEFAULT '',
    body TEXT NOT NULL DEFAULT '[]',
    author_id TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS comments (
    id TEXT PRIMARY KEY,
    post_id TEXT NOT NULL,
    name TEXT NOT NULL,
    email TEXT NOT NULL,
    comment TEXT NOT NULL,
    approved INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS comments_by_post ON comments (post_id, approved, created_at);
CREATE INDEX IF NOT EXISTS posts_by_created ON posts (created_at DESC);
`)
	return err
}

// ListSlugs returns the slug of every post.
func (s *Store) ListSlugs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT slug FROM posts ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slugs []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, err
		}
		slugs = append(slugs, slug)
	}
	return slugs, rows.Err()
}

const postColumns = `p.id, p.slug, p.title, p.description, p.main_image_ref, p.main_image_alt, p.created_at, COALESCE(a.name, ''), COALESCE(a.image_ref, '')`

func scanPost(sc interface{ Scan(...any) error }, extra ...any) (content.Post, error) {
	var (
		p                  content.Post
		mainRef, authorRef string
		created            string
	)
	dest := []any{&p.ID, &p.Slug.Current, &p.Title, &p.Description, &mainRef, &p.MainImage.Alt, &created, &p.Author.Name, &authorRef}
	if err := sc.Scan(append(dest, extra...)...); err != nil {
		return content.Post{}, err
	}
	t, err := time.Parse(timeLayout, created)
	if err != nil {
		return content.Post{}, fmt.Errorf("pubfront: post %s created_at: %w", p.ID, err)
	}
	p.CreatedAt = t
	p.MainImage.Asset = imageRef(mainRef)
	p.Author.Image.Asset = imageRef(authorRef)
	return p, nil
}

func imageRef(ref string) content.Reference {
	if ref == "" {
		return content.Reference{}
	}
	return content.Reference{Type: "reference", Ref: ref}
}

// ListPosts returns every post newest first, without body or comments.
func (s *Store) ListPosts(ctx context.Context) ([]content.Post, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+postColumns+`
		FROM posts p LEFT JOIN authors a ON a.id = p.author_id
		ORDER BY p.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []content.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// PostBySlug returns one post with its author and approved comments, or
// content.ErrNotFound.
func (s *Store) PostBySlug(ctx context.Context, slug string) (*content.Post, error) {
	var body string
	row := s.db.QueryRowContext(ctx, `SELECT `+postColumns+`, p.body
		FROM posts p LEFT JOIN authors a ON a.id = p.author_id
		WHERE p.slug = ?`, slug)
	p, err := scanPost(row, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, content.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(body), &p.Body); err != nil {
		return nil, fmt.Errorf("pubfront: post %s body: %w", p.ID, err)
	}
	p.Comments, err = s.approvedComments(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) approvedComments(ctx context.Context, postID string) ([]content.Comment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, email, comment, created_at
		FROM comments WHERE post_id = ? AND approved = 1
		ORDER BY created_at`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []content.Comment
	for rows.Next() {
		c := content.Comment{Post: content.Reference{Type: "reference", Ref: postID}, Approved: true}
		var created string
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Comment, &created); err != nil {
			return nil, err
		}
		if c.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			return nil, fmt.Errorf("pubfront: comment %s created_at: %w", c.ID, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateComment stores an unapproved comment. The post must exist.
func (s *Store) CreateComment(ctx context.Context, in content.NewComment) error {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM posts WHERE id = ?`, in.PostID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("pubfront: comment on post %q: %w", in.PostID, content.ErrNotFound)
	}
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO comments (id, post_id, name, email, comment, approved, created_at)
		VALUES (?, ?, ?, ?, ?, 0, ?)`,
		uuid.NewString(), in.PostID, in.Name, in.Email, in.Comment, time.Now().UTC().Format(timeLayout))
	return err
}

// ApproveComment marks a comment approved so it is shown on its post.
func (s *Store) ApproveComment(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE comments SET approved = 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return content.ErrNotFound
	}
	return nil
}

// SaveAuthor upserts an author.
func (s *Store) SaveAuthor(ctx context.Context, a AuthorDoc) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO authors (id, name, image_ref) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, image_ref = excluded.image_ref`,
		a.ID, a.Name, a.Image.Asset.Ref)
	return err
}

// SavePost upserts a post. An empty slug is derived from the title and a
// zero CreatedAt becomes now.
func (s *Store) SavePost(ctx context.Context, p PostDoc) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Slug == "" {
		p.Slug = Slugify(p.Title)
	}
	if p.Slug == "" {
		return errors.New("pubfront: post needs a slug or a title")
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	body := []byte("[]")
	if len(p.Body) > 0 {
		var err error
		if body, err = json.Marshal(p.Body); err != nil {
			return fmt.Errorf("pubfront: encode body of %s: %w", p.Slug, err)
		}
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO posts
		(id, slug, title, description, main_image_ref, main_image_alt, body, author_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET slug = excluded.slug, title = excluded.title,
			description = excluded.description, main_image_ref = excluded.main_image_ref,
			main_image_alt = excluded.main_image_alt, body = excluded.body,
			author_id = excluded.author_id, created_at = excluded.created_at`,
		p.ID, p.Slug, p.Title, p.Description, p.MainImage.Asset.Ref, p.MainImage.Alt,
		string(body), p.AuthorID, p.CreatedAt.UTC().Format(timeLayout))
	return err
}

// saveComment stores a comment document as is, approval included.
func (s *Store) saveComment(ctx context.Context, c content.Comment) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	approved := 0
	if c.Approved {
		approved = 1
	}
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO comments
		(id, post_id, name, email, comment, approved, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Post.Ref, c.Name, c.Email, c.Comment, approved, c.CreatedAt.UTC().Format(timeLayout))
	return err
}

// ImageURL maps an asset reference to the local image route. A requested
// width is passed as ?w= and honoured by the image handler.
func (s *Store) ImageURL(img content.Image, opts ...content.ImageOption) string {
	if img.Asset.Ref == "" {
		return ""
	}
	u := s.imagePrefix + url.PathEscape(img.Asset.Ref)
	if o := content.BuildImageOptions(opts...); o.Width > 0 {
		u += "?w=" + strconv.Itoa(o.Width)
	}
	return u
}

// ImportStats counts the documents read by ImportNDJSON.
type ImportStats struct {
	Authors  int
	Posts    int
	Comments int
	Skipped  int
}

type importDoc struct {
	ID          string              `json:"_id"`
	Type        string              `json:"_type"`
	CreatedAt   time.Time           `json:"_createdAt"`
	Name        string              `json:"name"`
	Image       content.Image       `json:"image"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Slug        content.Slug        `json:"slug"`
	MainImage   content.Image       `json:"mainImage"`
	Body        portabletext.Blocks `json:"body"`
	Author      content.Reference   `json:"author"`
	Post        content.Reference   `json:"post"`
	Email       string              `json:"email"`
	Comment     string              `json:"comment"`
	Approved    bool                `json:"approved"`
}

// ImportNDJSON loads a content store export: one JSON document per line,
// with _type author, post or comment. Other document types are counted as
// skipped. Import stops at the first malformed line.
func (s *Store) ImportNDJSON(ctx context.Context, r io.Reader) (ImportStats, error) {
	var stats ImportStats
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), 16<<20)
	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var doc importDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return stats, fmt.Errorf("pubfront: import line %d: %w", line, err)
		}
		var err error
		switch doc.Type {
		case "author":
			err = s.SaveAuthor(ctx, AuthorDoc{ID: doc.ID, Name: doc.Name, Image: doc.Image})
			stats.Authors++
		case "post":
			err = s.SavePost(ctx, PostDoc{
				ID:          doc.ID,
				Title:       doc.Title,
				Description: doc.Description,
				Slug:        doc.Slug.Current,
				MainImage:   doc.MainImage,
				Body:        doc.Body,
				AuthorID:    doc.Author.Ref,
				CreatedAt:   doc.CreatedAt,
			})
			stats.Posts++
		case "comment":
			err = s.saveComment(ctx, content.Comment{
				ID:        doc.ID,
				CreatedAt: doc.CreatedAt,
				Post:      doc.Post,
				Name:      doc.Name,
				Email:     doc.Email,
				Comment:   doc.Comment,
				Approved:  doc.Approved,
			})
			stats.Comments++
		default:
			stats.Skipped++
		}
		if err != nil {
			return stats, fmt.Errorf("pubfront: import line %d (%s %s): %w", line, doc.Type, doc.ID, err)
		}
	}
	if err := sc.Err(); err != nil {
		return stats, fmt.Errorf("pubfront: import: %w", err)
	}
	return stats, nil
}
