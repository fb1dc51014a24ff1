package research

// Prompt templates for the fixed research pipeline. Placeholders are filled
// with fmt.Sprintf in the order listed in each template's comment.

// queryWriterInstructions: current date, research topic, number of queries.
const queryWriterInstructions = `Your goal is to generate sophisticated and diverse web search queries. These queries are intended for an advanced automated web research tool capable of analyzing complex results, following links, and synthesizing information.

Instructions:
- Always prefer a single search query, only add another query if the original question requests multiple aspects or elements and one query is not enough.
- Each query should focus on one specific aspect of the original question.
- Don't produce more than %[3]d queries.
- Queries should be diverse, if the topic is broad, generate more than 1 query.
- Don't generate multiple similar queries, 1 is enough.
- Query should ensure that the most current information is gathered. The current date is %[1]s.

Format:
- Format your response as a JSON object with ALL two of these exact keys:
   - "rationale": Brief explanation of why these queries are relevant
   - "query": A list of search queries

Example:

Topic: What revenue grew more last year apple stock or the number of people buying an iphone
` + "```json" + `
{
    "rationale": "To answer this comparative growth question accurately, we need specific data points on Apple's stock performance and iPhone sales metrics. These queries target the precise financial information needed: company revenue trends, product-specific unit sales figures, and stock price movement over the same fiscal period for direct comparison.",
    "query": ["Apple total revenue growth fiscal year 2024", "iPhone unit sales growth fiscal year 2024", "Apple stock price growth fiscal year 2024"]
}
` + "```" + `

Context: %[2]s`

// webSearcherInstructions: current date, research topic.
const webSearcherInstructions = `Conduct targeted web searches to gather the most recent, credible information on "%[2]s" and synthesize it into a verifiable text artifact.

Instructions:
- Query should ensure that the most current information is gathered. The current date is %[1]s.
- Conduct multiple, diverse searches to gather comprehensive information.
- Consolidate key findings while meticulously tracking the source(s) for each specific piece of information.
- The output should be a well-written summary or report based on your search findings.
- Only include the information found in the search results, don't make up any information.

Research Topic:
%[2]s`

// reflectionInstructions: current date, research topic, joined summaries.
const reflectionInstructions = `You are an expert research assistant analyzing summaries about "%[2]s".

Instructions:
- Identify knowledge gaps or areas that need deeper exploration and generate a follow-up query. (1 or multiple).
- If provided summaries are sufficient to answer the user's question, don't generate a follow-up query.
- If there is a knowledge gap, generate a follow-up query that would help expand your understanding.
- Focus on technical details, implementation specifics, or emerging trends that weren't fully covered.
- The current date is %[1]s.

Requirements:
- Ensure the follow-up query is self-contained and includes necessary context for web search.

Output Format:
- Format your response as a JSON object with these exact keys:
   - "is_sufficient": true or false
   - "knowledge_gap": Describe what information is missing or needs clarification
   - "follow_up_queries": Write a specific question to address this gap

Example:
` + "```json" + `
{
    "is_sufficient": false,
    "knowledge_gap": "The summary lacks information about performance metrics and benchmarks",
    "follow_up_queries": ["What are typical performance benchmarks and metrics used to evaluate [specific technology]?"]
}
` + "```" + `

Reflect carefully on the Summaries to identify knowledge gaps and produce a follow-up query. Then, produce your output following this JSON format:

Summaries:
%[3]s`

// answerInstructions: current date, research topic, joined summaries.
const answerInstructions = `Generate a high-quality answer to the user's question based on the provided summaries.

Instructions:
- The current date is %[1]s.
- You are the final step of a multi-step research process, don't mention that you are the final step.
- You have access to all the information gathered from the previous steps.
- You have access to the user's question.
- Generate a high-quality answer to the user's question based on the provided summaries and the user's question.
- Include the sources you used from the Summaries in the answer correctly, use markdown format (e.g. [apnews](https://vertexaisearch.cloud.google.com/id/1-0)).

User Context:
- %[2]s

Summaries:
%[3]s`

// researchSystemPrompt: current date. Used by the tool-calling loop.
const researchSystemPrompt = `You are an intelligent research assistant with access to powerful tools. Your goal is to help users by:

1. Understanding their request and determining what tools might be helpful
2. Using available tools to gather information, search the web, or scrape content
3. Synthesizing the results to provide comprehensive, accurate answers

Available tools will be provided to you. When you need to use a tool, respond with the appropriate tool_calls in your response.

Guidelines:
- Always think step by step about what information you need
- Use tools when you need external information or data
- Be thorough but efficient in your tool usage
- Provide clear, well-structured responses
- Cite sources when using information from tools

Current date: %s
`
