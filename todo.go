/*
	Project: StudyHub - study groups for students (ref: https://www.studyhub.com/)
	Target: Universities & secondary schools
*/
package studyhub

/*
TODO: admin: cmd to transfer group ownership (owner cannot leave a group today)
TODO: group chat: messages per group + unread badge (gorilla/websocket ?)

FE:
	- Dashboard
		* upcoming sessions (next 7 days)
		* todos: personal + groups, completion per member
	- Groups
		* recommended groups (score desc) | quick match
		* materials, quizzes & results

------------------------------------ Version X ----------------------------------------
FIXME:Edge-case:
- Session time is stored as "HH:MM" wall-clock in the group's timezone ?? or the creator's ??
  (today: one `session.timezone` for every group). Store an IANA zone on the group.
- Quiz generated from a PDF: only the title is sent to the generator. Extract text (pdftotext ?)

TODO: Notifications
	- session request reviewed: email only today. In-app + push ?
	- todo due soon (24h): periodic cmd in apps/admin

TODO: Quizzes
	- retakes: keep best score | last score ?? (today: every attempt is kept)
	- leaderboard per group
*/
