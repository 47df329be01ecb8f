package linear

const issueFields = `
	id
	identifier
	title
	description
	priority
	estimate
	state { id name color type }
	assignee { id name displayName email }
	labels { nodes { id name color } }
	project { id name }
	cycle { id name number }
	createdAt
	updatedAt
	url
`

const viewerQuery = `
query Viewer {
  viewer { id name displayName email }
}`

const teamsQuery = `
query Teams {
  teams {
    nodes { id key name }
  }
}`

const teamQuery = `
query Team($id: String!) {
  team(id: $id) {
    id
    key
    name
    states { nodes { id name color type } }
    labels { nodes { id name color } }
    members { nodes { id name displayName email } }
  }
}`

const issuesQuery = `
query Issues($filter: IssueFilter, $first: Int, $after: String) {
  issues(filter: $filter, first: $first, after: $after) {
    nodes {` + issueFields + `}
    pageInfo { hasNextPage endCursor }
  }
}`

const issueQuery = `
query Issue($id: String!) {
  issue(id: $id) {` + issueFields + `}
}`

const issueCreateMutation = `
mutation IssueCreate($input: IssueCreateInput!) {
  issueCreate(input: $input) {
    success
    issue {` + issueFields + `}
  }
}`

const issueUpdateMutation = `
mutation IssueUpdate($id: String!, $input: IssueUpdateInput!) {
  issueUpdate(id: $id, input: $input) {
    success
    issue {` + issueFields + `}
  }
}`

const commentCreateMutation = `
mutation CommentCreate($input: CommentCreateInput!) {
  commentCreate(input: $input) {
    success
    comment { id }
  }
}`

const relationCreateMutation = `
mutation IssueRelationCreate($input: IssueRelationCreateInput!) {
  issueRelationCreate(input: $input) {
    success
    issueRelation { id type }
  }
}`

const issueRelationsQuery = `
query IssueRelations($id: String!) {
  issue(id: $id) {
    relations {
      nodes {
        id
        type
        issue { id }
        relatedIssue { id }
      }
    }
  }
}`

const projectsQuery = `
query Projects($teamId: String!) {
  team(id: $teamId) {
    projects { nodes { id name } }
  }
}`

const projectCreateMutation = `
mutation ProjectCreate($input: ProjectCreateInput!) {
  projectCreate(input: $input) {
    success
    project { id name }
  }
}`

const cyclesQuery = `
query Cycles($teamId: String!) {
  team(id: $teamId) {
    cycles { nodes { id name number } }
  }
}`

const cycleCreateMutation = `
mutation CycleCreate($input: CycleCreateInput!) {
  cycleCreate(input: $input) {
    success
    cycle { id name number }
  }
}`

const webhookCreateMutation = `
mutation WebhookCreate($input: WebhookCreateInput!) {
  webhookCreate(input: $input) {
    success
    webhook { id url label resourceTypes enabled }
  }
}`

const webhookDeleteMutation = `
mutation WebhookDelete($id: String!) {
  webhookDelete(id: $id) {
    success
  }
}`

const webhooksQuery = `
query Webhooks {
  webhooks {
    nodes { id url label resourceTypes enabled }
  }
}`
