package content

// GROQ queries issued against the content store.
const (
	slugsQuery = `*[_type == "post"] {
  _id,
  slug {
    current
  }
}`

	postsQuery = `*[_type == "post"] | order(_createdAt desc) {
  _id,
  _createdAt,
  title,
  description,
  mainImage,
  slug,
  author -> {
    name,
    image
  }
}`

	// The approved filter is the only place unapproved comments are
	// excluded from pages.
	postBySlugQuery = `*[_type == "post" && slug.current == $slug][0] {
  _id,
  _createdAt,
  title,
  author -> {
    name,
    image
  },
  'comments': *[_type == "comment" && post._ref == ^._id && approved == true],
  description,
  mainImage,
  slug,
  body
}`

	postExistsQuery = `count(*[_type == "post" && _id == $id])`
)
