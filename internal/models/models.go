// Package models contains the domain entities stored in the graph and the read
// shapes returned to callers. Entities carry `crud` tags for neopersist and
// `json` tags for both the HTTP layer and record decoding.
package models

// Graph labels.
const (
	LabelUser       = "User"
	LabelModel      = "Model"
	LabelTag        = "Tag"
	LabelFile       = "File"
	LabelCollection = "Collection"
)

// Relationship types.
const (
	RelUploaded          = "UPLOADED"
	RelTaggedWith        = "TAGGED_WITH"
	RelHasFile           = "HAS_FILE"
	RelUpvoted           = "UPVOTED"
	RelDownvoted         = "DOWNVOTED"
	RelIsInCollection    = "IS_IN_COLLECTION"
	RelCreatedCollection = "CREATED_COLLECTION"
)

// User is a registered account.
type User struct {
	ID        string `crud:"pk,property:id" json:"id"`
	Username  string `crud:"property:username" json:"username"`
	Email     string `crud:"property:email" json:"email"`
	Password  string `crud:"property:password" json:"-"`
	CreatedAt int64  `crud:"property:created_at" json:"created_at"`
}

// Caller is the authenticated identity supplied with a request.
type Caller struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Model is an uploaded 3D model. Its binary assets live in the asset store; the
// node keeps their names and the counts computed when the glTF payload was
// validated.
type Model struct {
	ID                 string   `crud:"pk,property:id" json:"id"`
	Slug               string   `crud:"property:slug" json:"slug"`
	Name               string   `crud:"property:name" json:"name"`
	Description        string   `crud:"property:description" json:"description"`
	Images             []string `crud:"property:images" json:"images"`
	Gltf               string   `crud:"property:gltf" json:"gltf"`
	GltfFiles          []string `crud:"property:gltfFiles" json:"gltfFiles"`
	Views              int64    `crud:"property:views" json:"views"`
	Downloads          int64    `crud:"property:downloads" json:"downloads"`
	Metadata           string   `crud:"property:metadata" json:"metadata,omitempty"`
	TotalVertexCount   int64    `crud:"property:totalVertexCount" json:"totalVertexCount"`
	TotalTriangleCount int64    `crud:"property:totalTriangleCount" json:"totalTriangleCount"`
	CreatedAt          int64    `crud:"property:created_at" json:"created_at"`
}

// File is one downloadable model asset.
type File struct {
	ID   string `crud:"pk,property:id" json:"id"`
	Name string `crud:"property:name" json:"name"`
	Size int64  `crud:"property:size" json:"size"`
	Type string `crud:"property:type" json:"type"`
}

// Tag is identified by its name.
type Tag struct {
	Name string `crud:"pk,property:name" json:"name"`
}

// Collection groups models picked by a user.
type Collection struct {
	ID          string `crud:"pk,property:id" json:"id"`
	Slug        string `crud:"property:slug" json:"slug"`
	Name        string `crud:"property:name" json:"name"`
	Description string `crud:"property:description" json:"description"`
	Private     bool   `crud:"property:private" json:"private"`
	Created     int64  `crud:"property:created" json:"created"`
	Updated     int64  `crud:"property:updated" json:"updated"`
}

// Author is the public part of a user shown next to content.
type Author struct {
	ID       string `json:"id,omitempty"`
	Username string `json:"username"`
}

// ModelSummary is the listing shape of a model.
type ModelSummary struct {
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Image string `json:"image"`
	User  Author `json:"user"`
}

// ModelDetails is a model with its author, tags and files.
type ModelDetails struct {
	Model `json:",squash"`
	User  Author `json:"user"`
	Tags  []string `json:"tags"`
	Files []File   `json:"files"`
}

// Recommendation is a similar model and its similarity score.
type Recommendation struct {
	ModelSummary `json:",squash"`
	Score        float64 `json:"score"`
}

// CollectionDetails is a collection with its author and, when requested, its models.
type CollectionDetails struct {
	Collection `json:",squash"`
	User       Author         `json:"user"`
	Models     []ModelSummary `json:"models,omitempty"`
}

// Page is one page of a listing.
type Page[T any] struct {
	Items    []T   `json:"items"`
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}
