package domain

type Post struct {
	ID        string
	Author    User
	Content   string
	ImageURL  string
	Timestamp string
	Likes     int
	IsLiked   bool
	Comments  []Comment
}

// WithLike returns the optimistic guess for a like toggle.
func (p Post) WithLike() Post {
	if p.IsLiked {
		p.IsLiked = false
		if p.Likes > 0 {
			p.Likes--
		}
	} else {
		p.IsLiked = true
		p.Likes++
	}
	return p
}

// Apply overwrites the like fields with the server's answer.
func (p Post) Apply(r LikeResult) Post {
	p.Likes = r.Likes
	p.IsLiked = r.IsLiked
	return p
}

type Comment struct {
	ID      string
	Content string
	Author  string
	Handle  string
	Avatar  string
}

type LikeResult struct {
	Likes   int
	IsLiked bool
}

type NewPost struct {
	Content  string
	ImageURL string
}

func (p NewPost) Validate() error {
	if p.Content == "" {
		return NewValidationError(map[string]string{"content": "required"})
	}
	return nil
}
