package models

import "time"

// PostRecord is the durable record written for every successfully
// processed post. Fields that could not be extracted stay empty.
type PostRecord struct {
	PostURL   string      `json:"post_url"`
	PostID    string      `json:"post_id"`
	Profile   string      `json:"profile,omitempty"`
	Title     *TitleData  `json:"post_title,omitempty"`
	Images    []MediaRef  `json:"post_images"`
	Likes     *Engagement `json:"likes,omitempty"`
	Comments  []Comment   `json:"post_comments_gif"`
	ScrapedAt time.Time   `json:"scraped_at"`
}

// SkipRecord explains why a post was not processed in this run
type SkipRecord struct {
	Index     int       `json:"index"`
	PostURL   string    `json:"post_url,omitempty"`
	Reason    string    `json:"reason"`
	Profile   string    `json:"profile,omitempty"`
	SkippedAt time.Time `json:"skipped_at"`
}

// TitleData is the caption block anchored on the profile link of a post
type TitleData struct {
	TopDivClass  string   `json:"topDivClass,omitempty"`
	AHref        string   `json:"aHref,omitempty"`
	ASrc         string   `json:"aSrc,omitempty"`
	TimeDatetime string   `json:"timeDatetime,omitempty"`
	SiblingTexts []string `json:"siblingTexts,omitempty"`
	Hashtags     []string `json:"hashtags,omitempty"`
}

// MediaRef holds the attributes of one image of a post
type MediaRef struct {
	Src         string            `json:"src"`
	Alt         string            `json:"alt,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	LocalPath   string            `json:"local_path,omitempty"`
	ContentType string            `json:"content_type,omitempty"`
}

// Engagement is the like counter of a post
type Engagement struct {
	LikesText   string  `json:"likesText"`
	LikesNumber float64 `json:"likesNumber"`
}

// Comment is one parsed comment, with any images or GIFs it embeds
type Comment struct {
	Handle      string   `json:"handle,omitempty"`
	Date        string   `json:"date,omitempty"`
	Text        string   `json:"comment,omitempty"`
	Likes       string   `json:"likes,omitempty"`
	CommentImgs []string `json:"commentImgs,omitempty"`
}

// Cookie is a browser cookie as exported by the browser or a login helper
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain,omitempty"`
	Path     string  `json:"path,omitempty"`
	Expiry   float64 `json:"expiry,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	HTTPOnly bool    `json:"httpOnly,omitempty"`
	SameSite string  `json:"sameSite,omitempty"`
}

// ExpiresAt returns the cookie expiry truncated to whole seconds, or the
// zero time for session cookies
func (c Cookie) ExpiresAt() time.Time {
	if c.Expiry <= 0 {
		return time.Time{}
	}
	return time.Unix(int64(c.Expiry), 0)
}
